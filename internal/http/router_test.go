package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"morph/internal/embedding"
	"morph/internal/indexer"
	"morph/internal/inference"
	"morph/internal/retrieval"
	"morph/internal/storage"
	"morph/internal/storage/mocks"
)

type stubPipeline struct{}

func (stubPipeline) SyncFile(context.Context, *storage.FileRecord) (indexer.FileResult, error) {
	return indexer.FileResult{}, nil
}

func (stubPipeline) IndexAll(context.Context) (indexer.Stats, error) {
	return indexer.Stats{}, nil
}

func (stubPipeline) Coverage(context.Context, storage.EmbedSchema) (*indexer.CoverageStats, error) {
	return &indexer.CoverageStats{IndexVersion: "v"}, nil
}

type stubSubmitter struct{}

func (stubSubmitter) SubmitNote(context.Context, storage.NoteRecord) embedding.Submission {
	return embedding.Submission{OK: true}
}

func (stubSubmitter) SubmitAuthors(context.Context, string, inference.AuthorRequest) embedding.Submission {
	return embedding.Submission{OK: true}
}

type stubSearcher struct{}

func (stubSearcher) SimilarNotes(context.Context, string, int) ([]retrieval.Hit, error) {
	return []retrieval.Hit{{ID: "n2", Score: 0.5}}, nil
}

func (stubSearcher) SimilarEssays(context.Context, string, string, int) ([]retrieval.Hit, error) {
	return nil, nil
}

type stubMonitor struct{}

func (stubMonitor) Pending() []string { return nil }
func (stubMonitor) Indicator() embedding.IndicatorState { return embedding.IndicatorIdle }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctrl := gomock.NewController(t)

	notes := mocks.NewMockNoteStore(ctrl)
	notes.EXPECT().Get(gomock.Any(), "n1").Return(&storage.NoteRecord{ID: "n1", EmbeddingStatus: storage.StatusSuccess}, nil).AnyTimes()

	vaults := mocks.NewMockVaultStore(ctrl)
	vaults.EXPECT().GetByID(gomock.Any(), "missing").Return(storage.VaultRecord{}, storage.ErrNotFound).AnyTimes()

	return NewRouter(&Deps{
		BaseCtx:   t.Context(),
		Vaults:    vaults,
		Notes:     notes,
		Pipeline:  stubPipeline{},
		Submitter: stubSubmitter{},
		Searcher:  stubSearcher{},
		Monitor:   stubMonitor{},
	})
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "GET /api/health", method: http.MethodGet, path: "/api/health", wantStatus: http.StatusOK},
		{name: "GET /api/tasks", method: http.MethodGet, path: "/api/tasks", wantStatus: http.StatusOK},
		{name: "GET /api/index/coverage", method: http.MethodGet, path: "/api/index/coverage", wantStatus: http.StatusOK},
		{name: "GET unknown vault", method: http.MethodGet, path: "/api/vaults/missing", wantStatus: http.StatusNotFound},
		{name: "POST /api/vaults validates", method: http.MethodPost, path: "/api/vaults", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "GET note status", method: http.MethodGet, path: "/api/notes/n1/status", wantStatus: http.StatusOK},
		{name: "GET similar notes", method: http.MethodGet, path: "/api/notes/n1/similar", wantStatus: http.StatusOK},
		{name: "PUT note validates", method: http.MethodPut, path: "/api/notes/n1", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "POST context validates", method: http.MethodPost, path: "/api/files/f1/context", body: `not json`, wantStatus: http.StatusBadRequest},
		{name: "PUT file validates", method: http.MethodPut, path: "/api/vaults/v1/files/f1", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "GET context not allowed", method: http.MethodGet, path: "/api/files/f1/context", wantStatus: http.StatusMethodNotAllowed},
		{name: "DELETE note not allowed", method: http.MethodDelete, path: "/api/notes/n1", wantStatus: http.StatusMethodNotAllowed},
		{name: "preflight", method: http.MethodOptions, path: "/api/notes/n1", wantStatus: http.StatusNoContent},
		{name: "unknown route", method: http.MethodGet, path: "/api/chat", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v: %s", tt.method, tt.path, w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestRouter_CORS(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
