package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type stubRecurringProcessor struct {
	limits []int
}

func (s *stubRecurringProcessor) ProcessDueCycles(_ context.Context, limit int) (int, error) {
	s.limits = append(s.limits, limit)
	return 3, nil
}

func TestRunRecurringUsesDefaultLimit(t *testing.T) {
	processor := &stubRecurringProcessor{}
	handlers, err := NewInternalHandlers(processor)
	if err != nil {
		t.Fatalf("NewInternalHandlers: %v", err)
	}
	r := chi.NewRouter()
	handlers.Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/recurring/run", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(processor.limits) != 1 || processor.limits[0] != defaultRecurringBatchLimit {
		t.Fatalf("unexpected limits %v", processor.limits)
	}
}

func TestRunRecurringRejectsBadLimit(t *testing.T) {
	processor := &stubRecurringProcessor{}
	handlers, err := NewInternalHandlers(processor)
	if err != nil {
		t.Fatalf("NewInternalHandlers: %v", err)
	}
	r := chi.NewRouter()
	handlers.Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/recurring/run?limit=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(processor.limits) != 0 {
		t.Fatalf("the processor must not run with a bad limit")
	}
}
