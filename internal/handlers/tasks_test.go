package handlers

import (
	"net/http"
	"slices"
	"testing"

	"morph/internal/embedding"
)

type fakeMonitor struct {
	pending   []string
	indicator embedding.IndicatorState
}

func (f fakeMonitor) Pending() []string { return f.pending }
func (f fakeMonitor) Indicator() embedding.IndicatorState { return f.indicator }

func TestTasksHandler(t *testing.T) {
	tests := []struct {
		name    string
		monitor fakeMonitor
		want    []string
	}{
		{
			name:    "sorted pending ids",
			monitor: fakeMonitor{pending: []string{"t2", "t1", "t3"}, indicator: embedding.IndicatorIndexing},
			want:    []string{"t1", "t2", "t3"},
		},
		{
			name:    "nothing pending",
			monitor: fakeMonitor{indicator: embedding.IndicatorIdle},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, "/api/tasks", NewTasksHandler(tt.monitor), http.MethodGet, "/api/tasks", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("ServeHTTP() status = %d", w.Code)
			}
			resp := decodeBody[TasksResponse](t, w)
			if resp.Indicator != tt.monitor.indicator {
				t.Errorf("indicator = %s, want %s", resp.Indicator, tt.monitor.indicator)
			}
			if !slices.Equal(resp.Pending, tt.want) {
				t.Errorf("pending = %v, want %v", resp.Pending, tt.want)
			}
		})
	}
}
