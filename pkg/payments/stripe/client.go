package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabrielabsi/cvx-backend/pkg/payments"
)

// Client is a minimal Stripe Checkout Sessions client. Only session
// creation is needed here; webhooks and refunds live elsewhere.
type Client struct {
	SecretKey  string
	BaseURL    string
	SuccessURL string
	CancelURL  string
	httpDo     *http.Client
}

func New(secretKey, baseURL, successURL, cancelURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Client{
		SecretKey:  secretKey,
		BaseURL:    baseURL,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		httpDo: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession opens a one-off payment Checkout Session for the plan.
func (c *Client) CreateSession(ctx context.Context, req payments.SessionRequest) (payments.Session, error) {
	if c.SecretKey == "" {
		return payments.Session{}, errors.New("stripe secret key is empty")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.SuccessURL)
	form.Set("cancel_url", c.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", req.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.PlanName)
	form.Set("metadata[plan_id]", req.PlanID)
	if req.ClientReference != "" {
		form.Set("client_reference_id", req.ClientReference)
	}

	endpoint := fmt.Sprintf("%s/v1/checkout/sessions", c.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return payments.Session{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.httpDo.Do(httpReq)
	if err != nil {
		return payments.Session{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errOut errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errOut)
		return payments.Session{}, fmt.Errorf("stripe http %d: %s", resp.StatusCode, errOut.Error.Message)
	}
	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return payments.Session{}, err
	}
	if out.ID == "" {
		return payments.Session{}, errors.New("stripe returned no session id")
	}
	return payments.Session{ID: out.ID, URL: out.URL}, nil
}
