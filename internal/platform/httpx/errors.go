// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/rightupnext/billing/internal/shared"
)

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInsufficientStock),
		errors.Is(err, shared.ErrOverpayment):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNoSubscription),
		errors.Is(err, shared.ErrSubscriptionExpired):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

var titles = map[int]string{
	http.StatusNotFound:            "Not Found",
	http.StatusConflict:            "Duplicate",
	http.StatusBadRequest:          "Request Rejected",
	http.StatusForbidden:           "Subscription Required",
	http.StatusInternalServerError: "Internal Error",
}

// RespondError maps domain errors to HTTP responses using RFC7807. Infrastructure
// failures never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	detail := ""
	if status != http.StatusInternalServerError {
		detail = err.Error()
	}
	Problem(w, status, titles[status], detail)
}
