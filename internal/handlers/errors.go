package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/handlers/render"
	"github.com/nkiryanov/phantommask/internal/logger"
)

var notFoundMessages = []struct {
	err     error
	message string
}{
	{apperrors.ErrPharmacyNotFound, "Pharmacy not found"},
	{apperrors.ErrMaskNotFound, "Mask not found"},
	{apperrors.ErrUserNotFound, "User not found"},
	{apperrors.ErrListingNotFound, "Pharmacy does not sell this mask"},
	{apperrors.ErrTransactionNotFound, "No transactions to cancel"},
}

// serviceError renders service layer error with the matching status code
// Only unexpected errors are logged above debug level
func serviceError(w http.ResponseWriter, r *http.Request, l logger.Logger, err error) {
	l = logger.FromContext(r.Context(), l)

	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		l.Debug("Request rejected", "error", err)
		render.ServiceError(w, invalidMessage(err), http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrNotFound):
		l.Debug("Request rejected", "error", err)
		render.ServiceError(w, notFoundMessage(err), http.StatusNotFound)
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		l.Debug("Request rejected", "error", err)
		render.ServiceError(w, "Insufficient funds", http.StatusPaymentRequired)
	case errors.Is(err, apperrors.ErrConflict):
		l.Warn("Request conflicted with concurrent update", "error", err)
		render.ServiceError(w, "Conflicting concurrent update, retry the request", http.StatusConflict)
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		l.Error("Store unavailable", "error", err)
		render.ServiceError(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		l.Error("Request failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func notFoundMessage(err error) string {
	for _, m := range notFoundMessages {
		if errors.Is(err, m.err) {
			return m.message
		}
	}
	return "Not found"
}

// The reason given to apperrors.Invalid without layers' context
func invalidMessage(err error) string {
	_, reason, ok := strings.Cut(err.Error(), apperrors.ErrInvalidArgument.Error()+": ")
	if !ok || reason == "" {
		return "Invalid argument"
	}
	return reason
}
