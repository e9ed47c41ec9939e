package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"morph/internal/embedding"
	"morph/internal/indexer"
	"morph/internal/retrieval"
	"morph/internal/storage"
)

// FileSyncer stores an essay and submits it when it needs embeddings.
type FileSyncer interface {
	SyncFile(ctx context.Context, file *storage.FileRecord) (indexer.FileResult, error)
}

// EssaySearcher finds essays similar to a given one.
type EssaySearcher interface {
	SimilarEssays(ctx context.Context, vaultID, fileID string, k int) ([]retrieval.Hit, error)
}

// FileHandler serves essay upserts, status and similarity.
type FileHandler struct {
	files    storage.FileStore
	vaults   storage.VaultStore
	syncer   FileSyncer
	searcher EssaySearcher
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(files storage.FileStore, vaults storage.VaultStore, syncer FileSyncer, searcher EssaySearcher) *FileHandler {
	return &FileHandler{files: files, vaults: vaults, syncer: syncer, searcher: searcher}
}

// PutFileRequest is the body of PUT /api/vaults/{vaultID}/files/{fileID}.
type PutFileRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// SubmitResponse reports whether an entity is tracked and the task it
// waits on, if any.
type SubmitResponse struct {
	ID      string `json:"id"`
	Changed bool   `json:"changed,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	// Status is "submitted" when a task is pending and "embedded" otherwise.
	Status string `json:"status"`
}

// StatusResponse is the embedding status of one entity.
type StatusResponse struct {
	ID     string         `json:"id"`
	Status storage.Status `json:"status"`
	TaskID string         `json:"task_id,omitempty"`
}

// HitResponse is one similarity search result.
type HitResponse struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// SimilarResponse lists similarity search results.
type SimilarResponse struct {
	ID   string        `json:"id"`
	Hits []HitResponse `json:"hits"`
}

// Put stores an essay and submits it for embedding.
func (h *FileHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vaultID := chi.URLParam(r, "vaultID")
	fileID := chi.URLParam(r, "fileID")

	var req PutFileRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, ctx, err, "Invalid request body")
		return
	}
	if err := required("name", req.Name); err != nil {
		handleError(w, ctx, err, "Invalid request body")
		return
	}

	if _, err := h.vaults.GetByID(ctx, vaultID); err != nil {
		handleError(w, ctx, err, "Failed to load vault")
		return
	}

	result, err := h.syncer.SyncFile(ctx, &storage.FileRecord{
		ID:      fileID,
		VaultID: vaultID,
		Name:    req.Name,
		Content: req.Content,
	})
	if err != nil {
		handleError(w, ctx, err, "Failed to store file")
		return
	}

	writeSubmission(ctx, w, fileID, result.Changed, result.Submission)
}

// Status returns the embedding status of an essay.
func (h *FileHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	file, err := h.files.Get(ctx, chi.URLParam(r, "fileID"))
	if err != nil {
		handleError(w, ctx, err, "Failed to load file")
		return
	}
	writeJSON(ctx, w, http.StatusOK, StatusResponse{
		ID:     file.ID,
		Status: file.EmbeddingStatus,
		TaskID: file.EmbeddingTaskID,
	})
}

// Similar returns the essays of the same vault closest to the given one.
func (h *FileHandler) Similar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	k, err := parseK(r, retrieval.DefaultK)
	if err != nil {
		handleError(w, ctx, err, "Invalid request")
		return
	}

	file, err := h.files.Get(ctx, chi.URLParam(r, "fileID"))
	if err != nil {
		handleError(w, ctx, err, "Failed to load file")
		return
	}

	hits, err := h.searcher.SimilarEssays(ctx, file.VaultID, file.ID, k)
	if err != nil {
		handleError(w, ctx, err, "Failed to search essays")
		return
	}
	writeJSON(ctx, w, http.StatusOK, SimilarResponse{ID: file.ID, Hits: toHitResponses(hits)})
}

// writeSubmission answers 202 when a task is pending and 200 when the
// entity is already embedded.
func writeSubmission(ctx context.Context, w http.ResponseWriter, id string, changed bool, sub embedding.Submission) {
	resp := SubmitResponse{ID: id, Changed: changed, TaskID: sub.TaskID, Status: "embedded"}
	statusCode := http.StatusOK
	if sub.TaskID != "" {
		resp.Status = "submitted"
		statusCode = http.StatusAccepted
	}
	writeJSON(ctx, w, statusCode, resp)
}

func toHitResponses(hits []retrieval.Hit) []HitResponse {
	out := make([]HitResponse, 0, len(hits))
	for _, h := range hits {
		out = append(out, HitResponse{ID: h.ID, Score: h.Score})
	}
	return out
}
