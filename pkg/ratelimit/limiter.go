package ratelimit

import (
	"context"
	"log"
	"time"
)

// Counter is one fixed-window counter row, keyed by
// (identifier, endpoint, window_start).
type Counter struct {
	Identifier  string
	Endpoint    string
	WindowStart time.Time
	Count       int
}

// CounterStore abstracts counter persistence. Implementations may be
// in-memory (tests) or SQL.
type CounterStore interface {
	// Active returns the newest counter for the pair whose window started
	// at or after since, or nil when none exists.
	Active(ctx context.Context, identifier, endpoint string, since time.Time) (*Counter, error)
	Insert(ctx context.Context, c Counter) error
	Increment(ctx context.Context, identifier, endpoint string, windowStart time.Time) error
}

// Limiter bounds request volume per (identifier, endpoint) within a fixed
// window. When the counter store is unreachable the check fails open:
// availability is deliberately preferred over strictness here, so a store
// outage never blocks legitimate traffic.
type Limiter struct {
	store CounterStore
	now   func() time.Time
}

func New(store CounterStore) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Allow reports whether one more request is admitted, incrementing the
// window counter as a side effect. A denied request does not increment.
func (l *Limiter) Allow(ctx context.Context, identifier, endpoint string, max int, window time.Duration) bool {
	now := l.now().UTC()
	cur, err := l.store.Active(ctx, identifier, endpoint, now.Add(-window))
	if err != nil {
		log.Printf("ratelimit: counter lookup failed, failing open: %v", err)
		return true
	}
	if cur == nil {
		err := l.store.Insert(ctx, Counter{
			Identifier:  identifier,
			Endpoint:    endpoint,
			WindowStart: now,
			Count:       1,
		})
		if err != nil {
			log.Printf("ratelimit: counter insert failed, failing open: %v", err)
		}
		return true
	}
	if cur.Count >= max {
		return false
	}
	if err := l.store.Increment(ctx, identifier, endpoint, cur.WindowStart); err != nil {
		log.Printf("ratelimit: counter increment failed, failing open: %v", err)
	}
	return true
}
