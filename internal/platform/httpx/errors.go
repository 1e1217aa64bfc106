// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// RespondError maps error kinds to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	Problem(w, StatusFor(err), TitleFor(err), detailFor(err))
}

// StatusFor returns the HTTP status for an error kind.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrImbalancedEntry):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrStateConflict), errors.Is(err, shared.ErrBalanceExceeded):
		return http.StatusConflict
	case errors.Is(err, shared.ErrConfigurationMissing):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// TitleFor returns the problem title for an error kind.
func TitleFor(err error) string {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return "Not Found"
	case errors.Is(err, shared.ErrImbalancedEntry):
		return "Imbalanced Entry"
	case errors.Is(err, shared.ErrValidation):
		return "Validation Failed"
	case errors.Is(err, shared.ErrBalanceExceeded):
		return "Balance Exceeded"
	case errors.Is(err, shared.ErrStateConflict):
		return "Conflict"
	case errors.Is(err, shared.ErrConfigurationMissing):
		return "Configuration Missing"
	default:
		return "Internal Error"
	}
}

func detailFor(err error) string {
	if StatusFor(err) == http.StatusInternalServerError {
		return ""
	}
	return err.Error()
}
