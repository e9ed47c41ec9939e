package handlers

import (
	"context"
	"net/http"
	"sync/atomic"

	"morph/internal/contextutil"
	"morph/internal/indexer"
	"morph/internal/storage"
)

// VaultIndexer syncs configured vaults and reports their coverage.
type VaultIndexer interface {
	IndexAll(ctx context.Context) (indexer.Stats, error)
	Coverage(ctx context.Context, schema storage.EmbedSchema) (*indexer.CoverageStats, error)
}

// IndexHandler handles HTTP requests for re-indexing the vaults.
type IndexHandler struct {
	indexer VaultIndexer
	schema  storage.EmbedSchema
	// baseCtx outlives requests so a run keeps going after the response.
	baseCtx context.Context
	running atomic.Bool
}

// NewIndexHandler creates a new IndexHandler. Runs it starts stop when
// baseCtx is cancelled.
func NewIndexHandler(baseCtx context.Context, indexer VaultIndexer, schema storage.EmbedSchema) *IndexHandler {
	return &IndexHandler{indexer: indexer, schema: schema, baseCtx: baseCtx}
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Trigger starts an index run in the background. At most one run is
// active at a time.
func (h *IndexHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !h.running.CompareAndSwap(false, true) {
		writeJSON(ctx, w, http.StatusConflict, IndexResponse{
			Message: "Indexing is already running.",
			Status:  "running",
		})
		return
	}

	logger.InfoContext(ctx, "re-indexing triggered via API")

	go func() {
		defer h.running.Store(false)
		indexCtx := contextutil.WithLogger(h.baseCtx, logger)
		if _, err := h.indexer.IndexAll(indexCtx); err != nil {
			logger.ErrorContext(indexCtx, "re-indexing completed with errors", "error", err)
		}
	}()

	writeJSON(ctx, w, http.StatusAccepted, IndexResponse{
		Message: "Indexing started. Check server logs for progress.",
		Status:  "accepted",
	})
}

// Coverage returns per-vault embedding coverage.
func (h *IndexHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.indexer.Coverage(ctx, h.schema)
	if err != nil {
		handleError(w, ctx, err, "Failed to compute coverage")
		return
	}
	writeJSON(ctx, w, http.StatusOK, stats)
}
