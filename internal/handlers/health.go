package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/northcart/commerce/internal/domain"
)

// HealthProbe collects dependency health for the readiness endpoint.
type HealthProbe interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	probe   HealthProbe
	timeout time.Duration
	started time.Time
	now     func() time.Time
}

// NewHealthHandlers constructs the health endpoints. A nil probe makes
// readiness succeed unconditionally.
func NewHealthHandlers(probe HealthProbe) *HealthHandlers {
	return &HealthHandlers{
		probe:   probe,
		timeout: 5 * time.Second,
		started: time.Now().UTC(),
		now:     time.Now,
	}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": h.now().UTC().Sub(h.started).String(),
	})
}

// Readyz probes dependencies and reports 503 until all of them answer.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.probe == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.probe.Collect(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": string(domain.HealthStatusError),
			"error":  err.Error(),
		})
		return
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]any, len(report.Checks))
	for name, check := range report.Checks {
		entry := map[string]any{
			"status":    string(check.Status),
			"latencyMs": check.Latency.Milliseconds(),
		}
		if check.Detail != "" {
			entry["detail"] = check.Detail
		}
		if check.Error != "" {
			entry["error"] = check.Error
		}
		checks[name] = entry
	}

	writeJSON(w, status, map[string]any{
		"status":      string(report.Status),
		"checks":      checks,
		"generatedAt": report.GeneratedAt.UTC().Format(time.RFC3339),
	})
}
