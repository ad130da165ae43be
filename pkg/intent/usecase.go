package intent

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielabsi/cvx-backend/pkg/ratelimit"
)

// rateLimitEndpoint names the issuance endpoint in the counter table.
const rateLimitEndpoint = "checkout-intent"

// Options configures the intent service. AllowedPlans is the fixed
// allow-list of purchasable plan ids; DefaultPlan is applied when the
// issuance request omits planId and must itself be in the allow-list.
type Options struct {
	AllowedPlans []string
	DefaultPlan  string
	TTL          time.Duration
	RateMax      int
	RateWindow   time.Duration
}

type service struct {
	repo    Repository
	limiter *ratelimit.Limiter
	codec   *Codec
	fp      *Fingerprinter
	opts    Options
	now     func() time.Time
}

// NewService returns the default UseCase implementation.
func NewService(repo Repository, limiter *ratelimit.Limiter, codec *Codec, fp *Fingerprinter, opts Options) UseCase {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.RateMax <= 0 {
		opts.RateMax = 10
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = 10 * time.Minute
	}
	return &service{
		repo:    repo,
		limiter: limiter,
		codec:   codec,
		fp:      fp,
		opts:    opts,
		now:     time.Now,
	}
}

func (s *service) Issue(ctx context.Context, planID, ip, userAgent string) (IssuedToken, error) {
	if planID == "" {
		planID = s.opts.DefaultPlan
	}
	if !slices.Contains(s.opts.AllowedPlans, planID) {
		return IssuedToken{}, ErrInvalidPlan
	}

	identifier := s.fp.Combined(ip, userAgent)
	if !s.limiter.Allow(ctx, identifier, rateLimitEndpoint, s.opts.RateMax, s.opts.RateWindow) {
		return IssuedToken{}, ErrRateLimited
	}

	now := s.now().UTC()
	rec := Record{
		ID:            uuid.New(),
		TokenID:       uuid.New(),
		IPHash:        s.fp.Hash(ip),
		UserAgentHash: s.fp.Hash(userAgent),
		PlanID:        planID,
		ExpiresAt:     now.Add(s.opts.TTL),
		Used:          false,
		CreatedAt:     now,
	}
	// Insert before encoding: a token must never leave the server without a
	// confirmed ledger row behind it.
	if err := s.repo.Insert(ctx, rec); err != nil {
		return IssuedToken{}, fmt.Errorf("insert intent record: %w", err)
	}

	token, err := s.codec.Encode(Payload{
		TokenID:   rec.TokenID,
		IPHash:    rec.IPHash,
		UAHash:    rec.UserAgentHash,
		PlanID:    rec.PlanID,
		ExpMillis: rec.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return IssuedToken{}, fmt.Errorf("encode intent token: %w", err)
	}
	return IssuedToken{Token: token, ExpiresAt: rec.ExpiresAt}, nil
}

// Redeem runs the full verification chain: signature, expiry, client
// binding, then the one-time ledger flip. Redemption binds on the IP hash
// only; the User-Agent hash travels in the payload and ledger for audit
// but a UA change between issuance and checkout does not invalidate the
// token. requestedPlan, when non-empty, must agree with the plan embedded
// in the token; the authorized plan is always taken from the payload.
func (s *service) Redeem(ctx context.Context, token, ip, userAgent, requestedPlan string) (Redemption, error) {
	_ = userAgent

	payload, err := s.codec.Decode(token)
	if err != nil {
		return Redemption{}, err
	}
	if !s.now().UTC().Before(time.UnixMilli(payload.ExpMillis)) {
		return Redemption{}, ErrTokenExpired
	}
	if payload.IPHash != s.fp.Hash(ip) {
		return Redemption{}, ErrFingerprintMismatch
	}
	if requestedPlan != "" && requestedPlan != payload.PlanID {
		return Redemption{}, ErrPlanMismatch
	}

	ok, err := s.repo.MarkUsed(ctx, payload.TokenID, payload.PlanID)
	if err != nil {
		return Redemption{}, fmt.Errorf("mark intent used: %w", err)
	}
	if !ok {
		rec, err := s.repo.Get(ctx, payload.TokenID)
		if err != nil {
			return Redemption{}, ErrTokenNotFound
		}
		if rec.Used {
			return Redemption{}, ErrTokenUsed
		}
		// Unused row that the conditional update skipped: the ledger plan
		// disagrees with the signed payload.
		return Redemption{}, ErrPlanMismatch
	}
	return Redemption{TokenID: payload.TokenID, PlanID: payload.PlanID}, nil
}
