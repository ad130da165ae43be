package presenter

import "github.com/gofiber/fiber/v2"

// Error codes of the uniform API taxonomy.
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeRateLimited     = "RATE_LIMITED"
	CodePaymentRequired = "PAYMENT_REQUIRED"
	CodeInternal        = "INTERNAL_ERROR"
)

// ErrorBody is the inner object of the uniform error envelope. RequestID
// correlates the response with server-side logs; messages stay generic,
// detail lives only in logs.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func JSON(c *fiber.Ctx, status int, v any) error {
	return c.Status(status).JSON(v)
}

// Error writes the uniform envelope, picking up the request id minted by
// the requestid middleware.
func Error(c *fiber.Ctx, status int, code, message string) error {
	rid, _ := c.Locals("requestid").(string)
	return JSON(c, status, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: rid,
	}})
}
