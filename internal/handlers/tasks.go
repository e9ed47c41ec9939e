package handlers

import (
	"net/http"
	"sort"

	"morph/internal/embedding"
)

// TaskMonitor exposes the tasks being polled.
type TaskMonitor interface {
	Pending() []string
	Indicator() embedding.IndicatorState
}

// TasksHandler reports polling activity.
type TasksHandler struct {
	monitor TaskMonitor
}

// NewTasksHandler creates a new TasksHandler.
func NewTasksHandler(monitor TaskMonitor) *TasksHandler {
	return &TasksHandler{monitor: monitor}
}

// TasksResponse lists pending tasks and the aggregate indicator.
type TasksResponse struct {
	Indicator embedding.IndicatorState `json:"indicator"`
	Pending   []string                 `json:"pending"`
}

// ServeHTTP returns the pending task ids in sorted order.
func (h *TasksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pending := h.monitor.Pending()
	if pending == nil {
		pending = []string{}
	}
	sort.Strings(pending)
	writeJSON(r.Context(), w, http.StatusOK, TasksResponse{
		Indicator: h.monitor.Indicator(),
		Pending:   pending,
	})
}
