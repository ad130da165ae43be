package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/gabrielabsi/cvx-backend/api/http/presenter"
	"github.com/gabrielabsi/cvx-backend/pkg/checkout"
	"github.com/gabrielabsi/cvx-backend/pkg/intent"
)

type CheckoutHandler struct {
	uc *checkout.Service
}

func NewCheckoutHandler(uc *checkout.Service) *CheckoutHandler { return &CheckoutHandler{uc: uc} }

type createSessionRequest struct {
	PlanID      string `json:"planId"`
	IntentToken string `json:"intentToken"`
}

// CreateSession opens a payment session. Authenticated callers pick a plan
// directly; guests must present an intent token and the plan comes from
// the token payload.
// @Summary Create a payment session
// @Tags    checkout
// @Accept  json
// @Produce json
// @Param   input body createSessionRequest true "plan or intent token"
// @Success 200 {object} map[string]any
// @Failure 400 {object} presenter.ErrorResponse
// @Failure 401 {object} presenter.ErrorResponse
// @Failure 403 {object} presenter.ErrorResponse
// @Failure 429 {object} presenter.ErrorResponse
// @Failure 500 {object} presenter.ErrorResponse
// @Router  /checkout/session [post]
func (h *CheckoutHandler) CreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return presenter.Error(c, http.StatusBadRequest, presenter.CodeInvalidInput, "invalid JSON payload")
	}
	userID, _ := c.Locals("userId").(string)

	sess, err := h.uc.CreateSession(c.Context(), checkout.CreateSessionInput{
		UserID:      userID,
		PlanID:      req.PlanID,
		IntentToken: req.IntentToken,
		IP:          c.IP(),
		UserAgent:   c.Get("User-Agent"),
	})
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrUnknownPlan), errors.Is(err, checkout.ErrFreePlan):
			return presenter.Error(c, http.StatusBadRequest, presenter.CodeInvalidInput, "invalid plan")
		case errors.Is(err, checkout.ErrRateLimited):
			return presenter.Error(c, http.StatusTooManyRequests, presenter.CodeRateLimited, "too many requests, try again later")
		case errors.Is(err, checkout.ErrIntentRequired),
			errors.Is(err, intent.ErrMalformedToken),
			errors.Is(err, intent.ErrBadSignature),
			errors.Is(err, intent.ErrTokenNotFound):
			return presenter.Error(c, http.StatusUnauthorized, presenter.CodeUnauthorized, "invalid or expired token")
		case errors.Is(err, intent.ErrTokenExpired):
			return presenter.Error(c, http.StatusUnauthorized, presenter.CodeUnauthorized, "token expired")
		case errors.Is(err, intent.ErrTokenUsed):
			return presenter.Error(c, http.StatusForbidden, presenter.CodeForbidden, "token already used")
		case errors.Is(err, intent.ErrFingerprintMismatch):
			return presenter.Error(c, http.StatusForbidden, presenter.CodeForbidden, "token invalid for this session")
		case errors.Is(err, intent.ErrPlanMismatch):
			return presenter.Error(c, http.StatusForbidden, presenter.CodeForbidden, "plan does not match token")
		default:
			rid, _ := c.Locals("requestid").(string)
			log.Printf("checkout session failed request_id=%s: %v", rid, err)
			return presenter.Error(c, http.StatusInternalServerError, presenter.CodeInternal, "could not create payment session")
		}
	}

	return presenter.JSON(c, http.StatusOK, fiber.Map{
		"session_id": sess.ID,
		"url":        sess.URL,
		"plan_id":    sess.PlanID,
	})
}
