package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/northcart/commerce/internal/domain"
)

func TestRouterServesHealthz(t *testing.T) {
	r := NewRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestRouterReturnsErrorEnvelopeForUnknownRoutes(t *testing.T) {
	r := NewRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["error"] != errorNotFoundCode {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestRouterMountsRegisteredGroups(t *testing.T) {
	r := NewRouter(WithOrderRoutes(func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"pong": true})
		})
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/start", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 for an unregistered group, got %d", rec.Code)
	}
}

type stubHealthProbe struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthProbe) Collect(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func TestReadyzReflectsProbeStatus(t *testing.T) {
	probe := &stubHealthProbe{report: domain.SystemHealthReport{
		Status: domain.HealthStatusOK,
		Checks: map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusOK, Latency: 3 * time.Millisecond},
		},
		GeneratedAt: time.Now(),
	}}
	h := NewHealthHandlers(probe)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	probe.report.Status = domain.HealthStatusError
	rec = httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when a dependency is down, got %d", rec.Code)
	}
}
