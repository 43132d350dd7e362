package auth

import (
	"context"
	"errors"
	"net"
)

// Category is the machine-readable failure class surfaced alongside every
// human-readable error message.
type Category string

const (
	// CategoryNetwork marks the backing service as unreachable, which must
	// read differently from bad credentials.
	CategoryNetwork Category = "network"
	// CategoryAuth covers invalid credentials, unverified email and OAuth
	// failures.
	CategoryAuth Category = "auth"
	// CategoryNotAuthenticated marks operations attempted with no session.
	CategoryNotAuthenticated Category = "not_authenticated"
	// CategoryValidation covers malformed input rejected before any call.
	CategoryValidation Category = "validation"
	// CategoryInternal is everything else.
	CategoryInternal Category = "internal"
)

// Classified is an error carrying its category and a message safe to show
// the user. Services return these instead of letting transport errors
// escape uncaught.
type Classified struct {
	Category Category
	Message  string
	Err      error
}

func (e *Classified) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Classified) Unwrap() error { return e.Err }

// Fail builds a classified error.
func Fail(category Category, message string, err error) *Classified {
	return &Classified{Category: category, Message: message, Err: err}
}

// CategoryOf extracts the category of err, defaulting to internal.
func CategoryOf(err error) Category {
	var classified *Classified
	if errors.As(err, &classified) {
		return classified.Category
	}
	return CategoryInternal
}

// UserMessage extracts the displayable message of err.
func UserMessage(err error) string {
	var classified *Classified
	if errors.As(err, &classified) {
		return classified.Message
	}
	return "Something went wrong. Please try again."
}

const unreachableMessage = "Cannot connect to the guidance service. The backing project may be paused or unreachable. Please check its status and try again."

// classifyBackendErr folds a storage/transport error into the taxonomy:
// connection-level failures become network errors with an actionable
// message, everything else stays internal.
func classifyBackendErr(err error, fallback string) *Classified {
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) {
		return Fail(CategoryNetwork, unreachableMessage, err)
	}
	return Fail(CategoryInternal, fallback, err)
}
