package intent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Errors surfaced by issuance and redemption. Handlers map these onto the
// API error taxonomy; the split between "unauthorized" and "forbidden"
// classes follows from which check failed.
var (
	ErrInvalidPlan         = errors.New("plan is not in the allow-list")
	ErrRateLimited         = errors.New("too many intent requests")
	ErrMalformedToken      = errors.New("malformed intent token")
	ErrBadSignature        = errors.New("intent token signature mismatch")
	ErrTokenExpired        = errors.New("intent token expired")
	ErrTokenNotFound       = errors.New("intent token unknown")
	ErrTokenUsed           = errors.New("intent token already used")
	ErrFingerprintMismatch = errors.New("intent token bound to another client")
	ErrPlanMismatch        = errors.New("plan does not match intent token")
)

// Record is the persisted ledger row backing one issued token.
// It is written once at issuance and mutated exactly once, when the
// used flag flips on the first successful redemption.
type Record struct {
	ID            uuid.UUID
	TokenID       uuid.UUID
	IPHash        string
	UserAgentHash string
	PlanID        string
	ExpiresAt     time.Time
	Used          bool
	CreatedAt     time.Time
}

// Repository abstracts the intent ledger.
type Repository interface {
	Insert(ctx context.Context, rec Record) error
	Get(ctx context.Context, tokenID uuid.UUID) (Record, error)
	// MarkUsed flips used=false -> true for the given token and plan as a
	// single conditional update. It reports whether exactly one row was
	// updated; false means the row is missing, already used, or carries a
	// different plan. This is the serialization point that keeps concurrent
	// redemptions of the same token from both succeeding.
	MarkUsed(ctx context.Context, tokenID uuid.UUID, planID string) (bool, error)
}

// IssuedToken is what the issuance endpoint returns to the client.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// Redemption is the verified outcome of a successful redemption. PlanID
// comes from the signed payload, never from client input.
type Redemption struct {
	TokenID uuid.UUID
	PlanID  string
}

// UseCase describes the one-time checkout-intent flow.
type UseCase interface {
	Issue(ctx context.Context, planID, ip, userAgent string) (IssuedToken, error)
	Redeem(ctx context.Context, token, ip, userAgent, requestedPlan string) (Redemption, error)
}
