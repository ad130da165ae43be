package payments

import "context"

// Session is a created payment session; URL is where the client is sent
// to complete the purchase.
type Session struct {
	ID  string
	URL string
}

// SessionRequest carries everything a provider needs to open a session.
// PlanID is echoed into provider metadata so webhooks can attribute the
// payment.
type SessionRequest struct {
	PlanID          string
	PlanName        string
	AmountCents     int64
	Currency        string
	ClientReference string
}

// SessionCreator abstracts the payments provider. It keeps the checkout
// use case framework-agnostic and lets tests swap in a fake.
type SessionCreator interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}
