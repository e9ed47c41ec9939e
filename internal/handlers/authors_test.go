package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"morph/internal/embedding"
	"morph/internal/inference"
	"morph/internal/storage"
)

const authorPattern = "/api/files/{fileID}/authors"

func TestAuthorHandler_Submit(t *testing.T) {
	defaults := inference.DefaultAuthorRequest(testEssay)

	withAuthors := defaults
	withAuthors.NumAuthors = 3
	withAuthors.SearchBackend = "none"

	tests := []struct {
		name       string
		target     string
		body       any
		submission *embedding.Submission
		wantStatus int
		wantReq    *inference.AuthorRequest
	}{
		{
			name:       "empty body uses defaults",
			target:     "/api/files/f1/authors",
			wantStatus: http.StatusAccepted,
			wantReq:    &defaults,
		},
		{
			name:       "overrides",
			target:     "/api/files/f1/authors",
			body:       `{"num_authors": 3, "search_backend": "none"}`,
			wantStatus: http.StatusAccepted,
			wantReq:    &withAuthors,
		},
		{
			name:       "invalid override",
			target:     "/api/files/f1/authors",
			body:       `{"temperature": 3}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			target:     "/api/files/f1/authors",
			body:       `{"authors": 3}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown file",
			target:     "/api/files/nope/authors",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "submission failure",
			target:     "/api/files/f1/authors",
			submission: &embedding.Submission{},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			sub := newFakeSubmitter()
			if tt.submission != nil {
				sub.sub = *tt.submission
			}
			h := NewAuthorHandler(env.authors, env.files, sub)

			w := serve(t, authorPattern, http.HandlerFunc(h.Submit), http.MethodPost, tt.target, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Submit() status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantReq == nil {
				return
			}
			if len(sub.authors) != 1 {
				t.Fatalf("SubmitAuthors() calls = %d, want 1", len(sub.authors))
			}
			if sub.authors[0] != *tt.wantReq {
				t.Errorf("SubmitAuthors() req = %+v, want %+v", sub.authors[0], *tt.wantReq)
			}
			resp := decodeBody[SubmitResponse](t, w)
			if resp.ID != "f1" || resp.TaskID != "task-1" || resp.Status != "submitted" {
				t.Errorf("Submit() = %+v", resp)
			}
		})
	}
}

func TestAuthorHandler_Get(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	h := NewAuthorHandler(env.authors, env.files, newFakeSubmitter())

	w := serve(t, authorPattern, http.HandlerFunc(h.Get), http.MethodGet, "/api/files/f1/authors", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Get() before request status = %d, want %d", w.Code, http.StatusNotFound)
	}

	if err := env.tasks.EnsureExists(ctx, "t1", storage.StatusInProgress, time.Now()); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	if _, err := env.authors.Claim(ctx, "f1", "t1"); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	w = serve(t, authorPattern, http.HandlerFunc(h.Get), http.MethodGet, "/api/files/f1/authors", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Get() in progress status = %d", w.Code)
	}
	pending := decodeBody[AuthorResponse](t, w)
	if pending.Status != storage.StatusInProgress || pending.TaskID != "t1" {
		t.Errorf("Get() in progress = %+v", pending)
	}
	if pending.Authors == nil || len(pending.Authors) != 0 {
		t.Errorf("Get() in progress authors = %v, want empty", pending.Authors)
	}

	if err := env.results.SaveAuthorResult(ctx, "t1", "f1", []string{"Montaigne", "Didion"}, []string{"essays"}); err != nil {
		t.Fatalf("SaveAuthorResult() error = %v", err)
	}

	w = serve(t, authorPattern, http.HandlerFunc(h.Get), http.MethodGet, "/api/files/f1/authors", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Get() status = %d", w.Code)
	}
	done := decodeBody[AuthorResponse](t, w)
	if done.Status != storage.StatusSuccess || done.TaskID != "" {
		t.Errorf("Get() = %+v", done)
	}
	if len(done.Authors) != 2 || done.Authors[0] != "Montaigne" || len(done.Queries) != 1 {
		t.Errorf("Get() authors = %v queries = %v", done.Authors, done.Queries)
	}
}
