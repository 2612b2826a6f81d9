package ink

import "github.com/google/uuid"

// NewUserID derives a fresh non-secret user identifier for a first session.
// The id carries no authentication meaning; it only keys the ink account.
func NewUserID() string {
	return "u-" + uuid.NewString()
}
