package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/northcart/commerce/internal/checkout"
	"github.com/northcart/commerce/internal/orders"
	"github.com/northcart/commerce/internal/platform/httpx"
	"github.com/northcart/commerce/internal/repositories"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, httpx.NewError("bad_request", message, http.StatusBadRequest))
}

// writeServiceError maps service and repository failures onto the error
// envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var validation *orders.ValidationError
	if errors.As(err, &validation) {
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "the cart failed validation", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"warnings": validation.Warnings}))
		return
	}

	var decline *orders.DeclineError
	if errors.As(err, &decline) {
		httpx.WriteError(ctx, w, httpx.NewError("payment_declined", decline.Error(), http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"reasons": decline.Reasons}))
		return
	}

	switch {
	case errors.Is(err, orders.ErrOperationNotAllowed):
		httpx.WriteError(ctx, w, httpx.NewError("operation_not_allowed", err.Error(), http.StatusConflict))
		return
	case errors.Is(err, orders.ErrRecurringNotSupported):
		httpx.WriteError(ctx, w, httpx.NewError("recurring_not_supported", err.Error(), http.StatusConflict))
		return
	case errors.Is(err, orders.ErrRecurringInactive):
		httpx.WriteError(ctx, w, httpx.NewError("recurring_inactive", err.Error(), http.StatusConflict))
		return
	case errors.Is(err, checkout.ErrNoNextStep):
		httpx.WriteError(ctx, w, httpx.NewError("no_next_step", err.Error(), http.StatusConflict))
		return
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			httpx.WriteError(ctx, w, httpx.NewError("not_found", "the requested resource does not exist", http.StatusNotFound))
			return
		case repoErr.IsConflict():
			httpx.WriteError(ctx, w, httpx.NewError("conflict", repoErr.Error(), http.StatusConflict))
			return
		case repoErr.IsUnavailable():
			httpx.WriteError(ctx, w, httpx.NewError("unavailable", "a backing store is unavailable", http.StatusServiceUnavailable))
			return
		}
	}

	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "an unexpected error occurred", http.StatusInternalServerError))
}
