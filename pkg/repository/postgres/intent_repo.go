package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gabrielabsi/cvx-backend/pkg/intent"
)

// IntentRepository implements intent.Repository backed by PostgreSQL (pgx).
type IntentRepository struct {
	pool *pgxpool.Pool
}

func NewIntentRepository(pool *pgxpool.Pool) (*IntentRepository, error) {
	repo := &IntentRepository{pool: pool}
	if err := repo.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *IntentRepository) ensureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS checkout_intents (
			id UUID PRIMARY KEY,
			token_id UUID NOT NULL UNIQUE,
			ip_hash TEXT NOT NULL,
			user_agent_hash TEXT NOT NULL,
			plan_id TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			used BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_checkout_intents_expires_at
			ON checkout_intents (expires_at);
	`)
	return err
}

func (r *IntentRepository) Insert(ctx context.Context, rec intent.Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO checkout_intents
			(id, token_id, ip_hash, user_agent_hash, plan_id, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.TokenID, rec.IPHash, rec.UserAgentHash, rec.PlanID, rec.ExpiresAt, rec.Used, rec.CreatedAt)
	return err
}

func (r *IntentRepository) Get(ctx context.Context, tokenID uuid.UUID) (intent.Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, token_id, ip_hash, user_agent_hash, plan_id, expires_at, used, created_at
		FROM checkout_intents WHERE token_id = $1
	`, tokenID)
	var rec intent.Record
	var expiresAt, createdAt time.Time
	err := row.Scan(&rec.ID, &rec.TokenID, &rec.IPHash, &rec.UserAgentHash, &rec.PlanID, &expiresAt, &rec.Used, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return intent.Record{}, intent.ErrTokenNotFound
		}
		return intent.Record{}, err
	}
	rec.ExpiresAt = expiresAt.UTC()
	rec.CreatedAt = createdAt.UTC()
	return rec, nil
}

// MarkUsed is the redemption serialization point: a single conditional
// update, never read-then-write. Two concurrent redemptions race on this
// statement and exactly one observes RowsAffected == 1.
func (r *IntentRepository) MarkUsed(ctx context.Context, tokenID uuid.UUID, planID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE checkout_intents SET used = TRUE
		WHERE token_id = $1 AND plan_id = $2 AND used = FALSE
	`, tokenID, planID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteExpired removes rows whose expiry has passed; called by the
// retention sweep, not by request handlers.
func (r *IntentRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM checkout_intents WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
