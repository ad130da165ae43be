package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gabrielabsi/cvx-backend/api/http/presenter"
	"github.com/gabrielabsi/cvx-backend/pkg/intent"
)

type IntentHandler struct {
	uc intent.UseCase
}

func NewIntentHandler(uc intent.UseCase) *IntentHandler { return &IntentHandler{uc: uc} }

type createIntentRequest struct {
	PlanID string `json:"planId"`
}

// Create issues a one-time checkout-intent token for a guest client.
// @Summary Issue a checkout intent token
// @Tags    checkout
// @Accept  json
// @Produce json
// @Param   input body createIntentRequest false "plan selection; defaults to basico"
// @Success 200 {object} map[string]any
// @Failure 400 {object} presenter.ErrorResponse
// @Failure 429 {object} presenter.ErrorResponse
// @Failure 500 {object} presenter.ErrorResponse
// @Router  /checkout/intent [post]
func (h *IntentHandler) Create(c *fiber.Ctx) error {
	var req createIntentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return presenter.Error(c, http.StatusBadRequest, presenter.CodeInvalidInput, "invalid JSON payload")
		}
	}

	issued, err := h.uc.Issue(c.Context(), req.PlanID, c.IP(), c.Get("User-Agent"))
	if err != nil {
		switch {
		case errors.Is(err, intent.ErrInvalidPlan):
			return presenter.Error(c, http.StatusBadRequest, presenter.CodeInvalidInput, "unknown plan")
		case errors.Is(err, intent.ErrRateLimited):
			return presenter.Error(c, http.StatusTooManyRequests, presenter.CodeRateLimited, "too many requests, try again later")
		default:
			rid, _ := c.Locals("requestid").(string)
			log.Printf("intent issue failed request_id=%s: %v", rid, err)
			return presenter.Error(c, http.StatusInternalServerError, presenter.CodeInternal, "could not issue intent token")
		}
	}

	return presenter.JSON(c, http.StatusOK, fiber.Map{
		"intent_token": issued.Token,
		"expires_at":   issued.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
