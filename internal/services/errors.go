package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cardcircle_errors "cardcircle/pkg/errors"
)

// HTTPStatus maps a service error to a response status. Errors that carry
// several sentinels resolve to the first match below.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, cardcircle_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, cardcircle_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, cardcircle_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cardcircle_errors.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, cardcircle_errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, cardcircle_errors.ErrAlreadyExists), errors.Is(err, cardcircle_errors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, cardcircle_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, cardcircle_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func ErrorCode(err error) string {
	switch HTTPStatus(err) {
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// PublicMessage is the text shown to callers. Unclassified errors never leak.
func PublicMessage(err error) string {
	if cardcircle_errors.IsClassified(err) {
		return err.Error()
	}
	return "internal error"
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", cardcircle_errors.ErrInvalidInput, reason)
}

func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", cardcircle_errors.ErrForbidden, reason)
}

func notFound(reason string) error {
	return fmt.Errorf("%w: %s", cardcircle_errors.ErrNotFound, reason)
}

// withTimeout bounds calls to external collaborators. d <= 0 disables the bound.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func unavailableOnTimeout(err error, what string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out", cardcircle_errors.ErrServiceUnavailable, what)
	}
	return err
}
