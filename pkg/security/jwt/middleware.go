package jwt

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/gabrielabsi/cvx-backend/api/http/presenter"
)

// NewAuthMiddleware returns a Fiber middleware that requires a valid
// Bearer JWT (HS256). On success it sets "userId" and "plan" locals.
func NewAuthMiddleware(secret, expectedIssuer string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return presenter.Error(c, fiber.StatusUnauthorized, presenter.CodeUnauthorized, "missing Authorization header")
		}
		return validate(c, secret, expectedIssuer, authHeader)
	}
}

// NewOptionalAuthMiddleware validates a Bearer JWT only when one is
// presented. Requests without an Authorization header continue as guests;
// a header that is present but invalid is still rejected, so a caller can
// never downgrade to the guest path by sending a broken token.
func NewOptionalAuthMiddleware(secret, expectedIssuer string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Next()
		}
		return validate(c, secret, expectedIssuer, authHeader)
	}
}

func validate(c *fiber.Ctx, secret, expectedIssuer, authHeader string) error {
	// Support both "Bearer <token>" and "<token>" (no prefix).
	tokenStr := strings.TrimSpace(authHeader)
	if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		tokenStr = strings.TrimSpace(parts[1])
	}
	if tokenStr == "" {
		return presenter.Error(c, fiber.StatusUnauthorized, presenter.CodeUnauthorized, "empty token")
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !token.Valid {
		return presenter.Error(c, fiber.StatusUnauthorized, presenter.CodeUnauthorized, "invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return presenter.Error(c, fiber.StatusUnauthorized, presenter.CodeUnauthorized, "invalid token claims")
	}
	if expectedIssuer != "" && claims.Issuer != expectedIssuer {
		return presenter.Error(c, fiber.StatusUnauthorized, presenter.CodeUnauthorized, "invalid token issuer")
	}
	c.Locals("userId", claims.Subject)
	if claims.Plan != "" {
		c.Locals("plan", claims.Plan)
	}
	return c.Next()
}
