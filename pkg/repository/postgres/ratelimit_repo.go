package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gabrielabsi/cvx-backend/pkg/ratelimit"
)

// RateLimitRepository implements ratelimit.CounterStore backed by
// PostgreSQL (pgx).
type RateLimitRepository struct {
	pool *pgxpool.Pool
}

func NewRateLimitRepository(pool *pgxpool.Pool) (*RateLimitRepository, error) {
	repo := &RateLimitRepository{pool: pool}
	if err := repo.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *RateLimitRepository) ensureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rate_limit_counters (
			identifier_hash TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			window_start TIMESTAMPTZ NOT NULL,
			request_count INT NOT NULL DEFAULT 1,
			PRIMARY KEY (identifier_hash, endpoint, window_start)
		);
	`)
	return err
}

func (r *RateLimitRepository) Active(ctx context.Context, identifier, endpoint string, since time.Time) (*ratelimit.Counter, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT identifier_hash, endpoint, window_start, request_count
		FROM rate_limit_counters
		WHERE identifier_hash = $1 AND endpoint = $2 AND window_start >= $3
		ORDER BY window_start DESC
		LIMIT 1
	`, identifier, endpoint, since)
	var c ratelimit.Counter
	var windowStart time.Time
	if err := row.Scan(&c.Identifier, &c.Endpoint, &windowStart, &c.Count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.WindowStart = windowStart.UTC()
	return &c, nil
}

func (r *RateLimitRepository) Insert(ctx context.Context, c ratelimit.Counter) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rate_limit_counters (identifier_hash, endpoint, window_start, request_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identifier_hash, endpoint, window_start)
		DO UPDATE SET request_count = rate_limit_counters.request_count + 1
	`, c.Identifier, c.Endpoint, c.WindowStart, c.Count)
	return err
}

func (r *RateLimitRepository) Increment(ctx context.Context, identifier, endpoint string, windowStart time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE rate_limit_counters SET request_count = request_count + 1
		WHERE identifier_hash = $1 AND endpoint = $2 AND window_start = $3
	`, identifier, endpoint, windowStart)
	return err
}
