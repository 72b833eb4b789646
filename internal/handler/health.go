package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cortexai/ingest/internal/models"
)

const version = "1.0.0"

// HealthChecker is implemented by services that can report connectivity
type HealthChecker interface {
	TestConnection(ctx context.Context) error
}

// HealthHandler handles GET /health with optional dependency checks
type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler registers named dependency checks; nil entries are
// reported as disabled.
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	results := map[string]string{"server": "ok"}
	overallStatus := "healthy"

	// Short timeout so a slow dependency doesn't block the probe
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for name, checker := range h.checks {
		if checker == nil {
			results[name] = "disabled"
			continue
		}
		if err := checker.TestConnection(ctx); err != nil {
			results[name] = "unavailable: " + err.Error()
			overallStatus = "degraded"
		} else {
			results[name] = "ok"
		}
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	models.WriteJSON(w, statusCode, models.HealthResponse{
		Status:  overallStatus,
		Version: version,
		Checks:  results,
	})
}
