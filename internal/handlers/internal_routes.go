package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const defaultRecurringBatchLimit = 50

// RecurringProcessor runs due recurring payment cycles in batches.
type RecurringProcessor interface {
	ProcessDueCycles(ctx context.Context, limit int) (int, error)
}

// InternalHandlers exposes machine-to-machine endpoints. They are mounted
// behind HMAC middleware, never on public routes.
type InternalHandlers struct {
	recurring RecurringProcessor
}

// NewInternalHandlers validates dependencies and constructs the handlers.
func NewInternalHandlers(recurring RecurringProcessor) (*InternalHandlers, error) {
	if recurring == nil {
		return nil, errors.New("internal handlers: recurring processor is required")
	}
	return &InternalHandlers{recurring: recurring}, nil
}

// Register mounts the internal routes.
func (h *InternalHandlers) Register(r chi.Router) {
	r.Post("/recurring/run", h.RunRecurring)
}

// RunRecurring processes due recurring cycles, invoked by the scheduler.
func (h *InternalHandlers) RunRecurring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultRecurringBatchLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(ctx, w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	processed, err := h.recurring.ProcessDueCycles(ctx, limit)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"processed": processed})
}
