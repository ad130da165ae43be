package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gabrielabsi/cvx-backend/api/http/handlers"
)

// Register wires all HTTP routes onto the given Fiber app.
func Register(
	app *fiber.App,
	authH *handlers.AuthHandler,
	healthH *handlers.HealthHandler,
	intentH *handlers.IntentHandler,
	checkoutH *handlers.CheckoutHandler,
	analysisH *handlers.AnalysisHandler,
	authMW fiber.Handler,
	optionalAuthMW fiber.Handler,
) {
	api := app.Group("/api")
	v1 := api.Group("/v1")

	// Health and readiness endpoints for probes/monitoring
	v1.Get("/health", healthH.Health)
	v1.Get("/ready", healthH.Ready)

	a := v1.Group("/auth")
	a.Post("/register", authH.Register)
	a.Post("/login", authH.Login)

	// Checkout: intent issuance is always guest-reachable; session creation
	// accepts either a Bearer JWT or an intent token in the body.
	ck := v1.Group("/checkout")
	ck.Post("/intent", intentH.Create)
	ck.Post("/session", optionalAuthMW, checkoutH.CreateSession)

	// Resume analysis requires an account.
	rg := v1.Group("/resume")
	rg.Post("/analyze", authMW, analysisH.Analyze)
}
