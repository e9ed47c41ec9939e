package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"morph/internal/embedding"
	"morph/internal/retrieval"
	"morph/internal/storage"
)

// NoteSubmitter submits notes for embedding.
type NoteSubmitter interface {
	SubmitNote(ctx context.Context, note storage.NoteRecord) embedding.Submission
}

// NoteResetter drops the stored vector of a note whose content changed.
type NoteResetter interface {
	ResetNote(ctx context.Context, noteID string) (bool, error)
}

// NoteSearcher finds notes similar to a given one.
type NoteSearcher interface {
	SimilarNotes(ctx context.Context, noteID string, k int) ([]retrieval.Hit, error)
}

// NoteHandler serves note upserts, status and similarity.
type NoteHandler struct {
	notes     storage.NoteStore
	files     storage.FileStore
	resetter  NoteResetter
	submitter NoteSubmitter
	searcher  NoteSearcher
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(notes storage.NoteStore, files storage.FileStore, resetter NoteResetter, submitter NoteSubmitter, searcher NoteSearcher) *NoteHandler {
	return &NoteHandler{notes: notes, files: files, resetter: resetter, submitter: submitter, searcher: searcher}
}

// PutNoteRequest is the body of PUT /api/notes/{noteID}.
type PutNoteRequest struct {
	VaultID string `json:"vault_id"`
	FileID  string `json:"file_id"`
	Content string `json:"content"`
	Color   string `json:"color"`
	Dropped bool   `json:"dropped"`
}

func (req PutNoteRequest) validate() error {
	if err := required("vault_id", req.VaultID); err != nil {
		return err
	}
	if err := required("file_id", req.FileID); err != nil {
		return err
	}
	return required("content", req.Content)
}

// Put stores a note and submits it for embedding. Editing the content of an
// embedded note drops its vector so the new text is embedded.
func (h *NoteHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noteID := chi.URLParam(r, "noteID")

	var req PutNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, ctx, err, "Invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		handleError(w, ctx, err, "Invalid request body")
		return
	}

	file, err := h.files.Get(ctx, req.FileID)
	if err != nil {
		handleError(w, ctx, err, "Failed to load file")
		return
	}
	if file.VaultID != req.VaultID {
		handleError(w, ctx, &ValidationError{Field: "vault_id", Message: "does not match the file's vault"}, "Invalid request body")
		return
	}

	existing, err := h.notes.Get(ctx, noteID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		handleError(w, ctx, err, "Failed to load note")
		return
	}
	// A note stays on the file it was created on.
	if existing != nil && existing.FileID != req.FileID {
		handleError(w, ctx, &ValidationError{Field: "file_id", Message: "cannot move a note to another file"}, "Invalid request body")
		return
	}

	note := storage.NoteRecord{
		ID:      noteID,
		VaultID: req.VaultID,
		FileID:  req.FileID,
		Content: req.Content,
		Color:   req.Color,
		Dropped: req.Dropped,
	}
	if existing != nil {
		note.CreatedAt = existing.CreatedAt
	}
	if err := h.notes.Upsert(ctx, &note); err != nil {
		handleError(w, ctx, err, "Failed to store note")
		return
	}

	changed := existing == nil || existing.Content != req.Content
	if existing != nil && changed {
		if _, err := h.resetter.ResetNote(ctx, noteID); err != nil {
			handleError(w, ctx, err, "Failed to reset note")
			return
		}
	}

	sub := h.submitter.SubmitNote(ctx, note)
	if !sub.OK {
		handleError(w, ctx, ErrSubmissionFailed, "Failed to submit note")
		return
	}
	writeSubmission(ctx, w, noteID, changed, sub)
}

// Status returns the embedding status of a note.
func (h *NoteHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	note, err := h.notes.Get(ctx, chi.URLParam(r, "noteID"))
	if err != nil {
		handleError(w, ctx, err, "Failed to load note")
		return
	}
	writeJSON(ctx, w, http.StatusOK, StatusResponse{
		ID:     note.ID,
		Status: note.EmbeddingStatus,
		TaskID: note.EmbeddingTaskID,
	})
}

// Similar returns the notes closest to the given one across all vaults.
func (h *NoteHandler) Similar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noteID := chi.URLParam(r, "noteID")

	k, err := parseK(r, retrieval.DefaultK)
	if err != nil {
		handleError(w, ctx, err, "Invalid request")
		return
	}

	hits, err := h.searcher.SimilarNotes(ctx, noteID, k)
	if err != nil {
		handleError(w, ctx, err, "Failed to search notes")
		return
	}
	writeJSON(ctx, w, http.StatusOK, SimilarResponse{ID: noteID, Hits: toHitResponses(hits)})
}
