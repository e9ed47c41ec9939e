package handlers

import (
	"context"
	"net/http"
	"time"

	"morph/internal/contextutil"
)

// Check is one dependency probed by the health endpoint. A failing
// critical check makes the service unhealthy, any other failure degraded.
type Check struct {
	Name     string
	Critical bool
	Run      func(ctx context.Context) error
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	checks             []Check
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checks ...Check) *HealthHandler {
	return &HealthHandler{
		checks:             checks,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
// Returns 200 OK if healthy or degraded, 503 Service Unavailable if unhealthy.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	var issues []string
	status := "healthy"
	httpStatus := http.StatusOK

	for _, c := range h.checks {
		if err := c.Run(checkCtx); err != nil {
			logger.WarnContext(ctx, "health check failed", "check", c.Name, "error", err)
			checks[c.Name] = "error"
			issues = append(issues, c.Name+"_unavailable")
			if c.Critical {
				status = "unhealthy"
				httpStatus = http.StatusServiceUnavailable
			} else if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		checks[c.Name] = "ok"
	}

	writeJSON(ctx, w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	})
}
