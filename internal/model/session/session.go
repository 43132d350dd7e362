package session

import (
	"time"

	"github.com/google/uuid"
)

// Session is the authenticated identity bound to one application instance.
// It exists from sign-in (or restore) until sign-out.
type Session struct {
	UserID        uuid.UUID `json:"user_id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past its lifetime.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Identity is what sign-up yields before any session exists; the account
// may still be waiting on email verification.
type Identity struct {
	UserID        uuid.UUID `json:"user_id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
}
