package common

import (
	"errors"
	"net/http"
)

// Workflow error kinds. Operations wrap these with fmt.Errorf("%w: ...") and
// callers match with errors.Is, so the kind survives every layer.
var (
	// ErrValidation malformed input (missing review notes, bad payload)
	ErrValidation = errors.New("validation failed")
	// ErrNotFound unknown revision or content id
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden actor role below the required threshold
	ErrForbidden = errors.New("forbidden")
	// ErrPolicyViolation well-formed request whose workflow precondition is unmet
	ErrPolicyViolation = errors.New("workflow policy violation")
	// ErrExpired preview token past expiry (or unknown)
	ErrExpired = errors.New("expired or not found")
)

// HTTP surface errors
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// StatusFor maps an error kind to the HTTP status the API layer renders.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrPolicyViolation):
		return http.StatusConflict
	case errors.Is(err, ErrExpired):
		return http.StatusGone
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrExpiredToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
