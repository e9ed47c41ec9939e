package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"morph/internal/embedding"
	"morph/internal/inference"
	"morph/internal/storage"
)

// AuthorSubmitter submits author recommendation requests.
type AuthorSubmitter interface {
	SubmitAuthors(ctx context.Context, fileID string, req inference.AuthorRequest) embedding.Submission
}

// AuthorHandler serves author recommendations for essays.
type AuthorHandler struct {
	authors   storage.AuthorStore
	files     storage.FileStore
	submitter AuthorSubmitter
}

// NewAuthorHandler creates a new AuthorHandler.
func NewAuthorHandler(authors storage.AuthorStore, files storage.FileStore, submitter AuthorSubmitter) *AuthorHandler {
	return &AuthorHandler{authors: authors, files: files, submitter: submitter}
}

// AuthorOverrides optionally replaces the default request parameters.
type AuthorOverrides struct {
	NumAuthors       *int     `json:"num_authors,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	SearchBackend    *string  `json:"search_backend,omitempty"`
	NumSearchResults *int     `json:"num_search_results,omitempty"`
}

func (o AuthorOverrides) apply(req *inference.AuthorRequest) error {
	if o.NumAuthors != nil {
		if *o.NumAuthors <= 0 {
			return &ValidationError{Field: "num_authors", Message: "must be greater than 0"}
		}
		req.NumAuthors = *o.NumAuthors
	}
	if o.Temperature != nil {
		if *o.Temperature < 0 || *o.Temperature > 2 {
			return &ValidationError{Field: "temperature", Message: "must be between 0 and 2"}
		}
		req.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		if *o.MaxTokens <= 0 {
			return &ValidationError{Field: "max_tokens", Message: "must be greater than 0"}
		}
		req.MaxTokens = *o.MaxTokens
	}
	if o.SearchBackend != nil {
		req.SearchBackend = *o.SearchBackend
	}
	if o.NumSearchResults != nil {
		if *o.NumSearchResults < 0 {
			return &ValidationError{Field: "num_search_results", Message: "must not be negative"}
		}
		req.NumSearchResults = *o.NumSearchResults
	}
	return nil
}

// AuthorResponse is the stored recommendation state of an essay.
type AuthorResponse struct {
	FileID  string         `json:"file_id"`
	Status  storage.Status `json:"status"`
	TaskID  string         `json:"task_id,omitempty"`
	Authors []string       `json:"authors"`
	Queries []string       `json:"queries"`
	// CreatedAt is when the recommendation row was first written.
	CreatedAt time.Time `json:"created_at"`
}

// Submit requests author recommendations for an essay. The body is
// optional.
func (h *AuthorHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID := chi.URLParam(r, "fileID")

	var overrides AuthorOverrides
	if err := decodeOptionalJSON(r, &overrides); err != nil {
		handleError(w, ctx, err, "Invalid request body")
		return
	}

	file, err := h.files.Get(ctx, fileID)
	if err != nil {
		handleError(w, ctx, err, "Failed to load file")
		return
	}

	req := inference.DefaultAuthorRequest(file.Content)
	if err := overrides.apply(&req); err != nil {
		handleError(w, ctx, err, "Invalid request body")
		return
	}

	sub := h.submitter.SubmitAuthors(ctx, fileID, req)
	if !sub.OK {
		handleError(w, ctx, ErrSubmissionFailed, "Failed to submit author request")
		return
	}
	writeSubmission(ctx, w, fileID, false, sub)
}

// Get returns the stored author recommendations of an essay.
func (h *AuthorHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.authors.Get(ctx, chi.URLParam(r, "fileID"))
	if err != nil {
		handleError(w, ctx, err, "Failed to load authors")
		return
	}

	resp := AuthorResponse{
		FileID:    rec.FileID,
		Status:    rec.Status,
		TaskID:    rec.TaskID,
		Authors:   rec.RecommendedAuthors,
		Queries:   rec.Queries,
		CreatedAt: rec.CreatedAt,
	}
	if resp.Authors == nil {
		resp.Authors = []string{}
	}
	if resp.Queries == nil {
		resp.Queries = []string{}
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}
