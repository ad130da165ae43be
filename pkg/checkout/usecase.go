package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabrielabsi/cvx-backend/pkg/intent"
	"github.com/gabrielabsi/cvx-backend/pkg/payments"
	"github.com/gabrielabsi/cvx-backend/pkg/ratelimit"
)

var (
	ErrUnknownPlan    = errors.New("unknown plan")
	ErrFreePlan       = errors.New("plan is not purchasable")
	ErrIntentRequired = errors.New("intent token required for guest checkout")
	ErrRateLimited    = errors.New("too many checkout requests")
)

const rateLimitEndpoint = "create-checkout"

// CreateSessionInput is everything the handler extracts from the request.
// UserID is the verified JWT subject, empty for guests.
type CreateSessionInput struct {
	UserID      string
	PlanID      string
	IntentToken string
	IP          string
	UserAgent   string
}

// Session is the checkout outcome returned to the client.
type Session struct {
	ID     string
	URL    string
	PlanID string
}

// Service creates payment sessions over a dual authorization path:
// authenticated callers are trusted for their plan choice (validated
// against the catalog); guests must present a one-time intent token and
// the session plan is taken from the token, never from the request body.
type Service struct {
	plans    *PlanCatalog
	intents  intent.UseCase
	sessions payments.SessionCreator
	limiter  *ratelimit.Limiter
	fp       *intent.Fingerprinter
	rateMax  int
	rateWin  time.Duration
}

func NewService(plans *PlanCatalog, intents intent.UseCase, sessions payments.SessionCreator, limiter *ratelimit.Limiter, fp *intent.Fingerprinter) *Service {
	return &Service{
		plans:    plans,
		intents:  intents,
		sessions: sessions,
		limiter:  limiter,
		fp:       fp,
		rateMax:  10,
		rateWin:  10 * time.Minute,
	}
}

func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (Session, error) {
	identifier := s.fp.Combined(in.IP, in.UserAgent)
	if !s.limiter.Allow(ctx, identifier, rateLimitEndpoint, s.rateMax, s.rateWin) {
		return Session{}, ErrRateLimited
	}

	var planID string
	if in.UserID != "" {
		// Authenticated path: the intent machinery is skipped entirely.
		planID = in.PlanID
	} else {
		if in.IntentToken == "" {
			return Session{}, ErrIntentRequired
		}
		redemption, err := s.intents.Redeem(ctx, in.IntentToken, in.IP, in.UserAgent, in.PlanID)
		if err != nil {
			return Session{}, err
		}
		planID = redemption.PlanID
	}

	plan, ok := s.plans.Get(planID)
	if !ok {
		return Session{}, ErrUnknownPlan
	}
	if plan.AmountCents <= 0 {
		return Session{}, ErrFreePlan
	}

	// The ledger row is already marked used at this point; a provider
	// failure burns the token rather than risking double redemption.
	sess, err := s.sessions.CreateSession(ctx, payments.SessionRequest{
		PlanID:          plan.ID,
		PlanName:        plan.Name,
		AmountCents:     plan.AmountCents,
		Currency:        plan.Currency,
		ClientReference: in.UserID,
	})
	if err != nil {
		return Session{}, fmt.Errorf("create payment session: %w", err)
	}
	return Session{ID: sess.ID, URL: sess.URL, PlanID: plan.ID}, nil
}
