package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name       string
		checks     []Check
		wantStatus int
		wantHealth string
		wantIssues int
	}{
		{
			name:       "all healthy",
			checks:     []Check{{Name: "database", Critical: true, Run: ok}, {Name: "inference", Run: ok}},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
		{
			name:       "optional dependency down",
			checks:     []Check{{Name: "database", Critical: true, Run: ok}, {Name: "inference", Run: fail}},
			wantStatus: http.StatusOK,
			wantHealth: "degraded",
			wantIssues: 1,
		},
		{
			name:       "critical dependency down",
			checks:     []Check{{Name: "database", Critical: true, Run: fail}, {Name: "inference", Run: fail}},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
			wantIssues: 2,
		},
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks...)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("ServeHTTP() status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := decodeBody[HealthResponse](t, w)
			if resp.Status != tt.wantHealth {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantHealth)
			}
			if len(resp.Issues) != tt.wantIssues {
				t.Errorf("Issues = %v, want %d", resp.Issues, tt.wantIssues)
			}
			if len(resp.Checks) != len(tt.checks) {
				t.Errorf("Checks = %v, want %d entries", resp.Checks, len(tt.checks))
			}
		})
	}
}
