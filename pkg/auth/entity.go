package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is a domain entity representing a system user. Plan is the
// subscription tier id; new accounts start on "free" and change tiers
// through the payment flow.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Plan         string
	CreatedAt    time.Time
}
