package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated    = fmt.Errorf("unauthenticated")
	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrNotFound           = fmt.Errorf("not found")
	ErrServer             = fmt.Errorf("server error")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)

// WireCode converts an error into the stable code carried by NATS replies.
// Anything unrecognized degrades to SERVER_ERROR rather than leaking
// internal detail to the client.
func WireCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return "UNAUTHENTICATED"
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrInvalidPassword):
		return "INVALID_PAYLOAD"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrUserAlreadyExists):
		return "ALREADY_EXISTS"
	default:
		return "SERVER_ERROR"
	}
}

// Describe returns the short human text for an acknowledgement. Internal
// causes are collapsed the same way WireCode collapses codes.
func Describe(err error) string {
	switch WireCode(err) {
	case "UNAUTHENTICATED":
		return "Unauthenticated"
	case "INVALID_PAYLOAD":
		return "Invalid payload"
	case "NOT_FOUND":
		return "Not found"
	case "ALREADY_EXISTS":
		return "Already exists"
	default:
		return "Server error"
	}
}
