package domain

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrConflict          = errors.New("order status changed concurrently")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Kind classifies an error for logs and API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"

	case errors.Is(err, ErrValidation):
		return "validation"

	case errors.Is(err, ErrConflict):
		return "conflict"

	case errors.Is(err, ErrNotFound):
		return "not_found"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity

	case errors.Is(err, ErrConflict):
		return http.StatusConflict

	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout

	default:
		return http.StatusInternalServerError
	}
}

// Transient reports whether err is worth retrying on the next signal or tick.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrValidation) && !errors.Is(err, ErrConflict)
}
