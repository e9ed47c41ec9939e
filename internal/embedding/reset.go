package embedding

import (
	"context"
	"fmt"

	"morph/internal/contextutil"
	"morph/internal/storage"
	"morph/internal/vectorindex"
)

// ResultResetter drops the stored embeddings of an entity whose content
// changed. Reports false when a live task still owns the entity.
type ResultResetter interface {
	ResetEssay(ctx context.Context, vaultID, fileID string) (bool, error)
	ResetNote(ctx context.Context, noteID string) (bool, error)
}

// Resetter resets stored embeddings and removes the matching points from
// the vector index, so a changed essay or note is not found by its old
// vectors while it is embedded again.
type Resetter struct {
	results ResultResetter
	chunks  storage.ChunkEmbeddingStore
	index   vectorindex.Index
	schema  storage.EmbedSchema
}

// NewResetter creates a Resetter. A nil index disables point removal.
func NewResetter(results ResultResetter, chunks storage.ChunkEmbeddingStore, index vectorindex.Index, schema storage.EmbedSchema) *Resetter {
	if index == nil {
		index = vectorindex.Noop{}
	}
	return &Resetter{results: results, chunks: chunks, index: index, schema: schema}
}

// ResetEssay drops the chunks of a file and their index points.
func (r *Resetter) ResetEssay(ctx context.Context, vaultID, fileID string) (bool, error) {
	chunks, err := r.chunks.ListByFile(ctx, vaultID, fileID)
	if err != nil {
		return false, fmt.Errorf("failed to list chunks: %w", err)
	}

	reset, err := r.results.ResetEssay(ctx, vaultID, fileID)
	if err != nil || !reset || len(chunks) == 0 {
		return reset, err
	}

	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, vectorindex.ChunkPointID(vaultID, fileID, c.NodeID))
	}
	if err := r.index.Delete(ctx, vectorindex.EssayCollection(r.schema).Name, ids); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to remove essay chunks from index",
			"file_id", fileID, "error", err)
	}
	return true, nil
}

// ResetNote drops the vector of a note and its index point.
func (r *Resetter) ResetNote(ctx context.Context, noteID string) (bool, error) {
	reset, err := r.results.ResetNote(ctx, noteID)
	if err != nil || !reset {
		return reset, err
	}
	if err := r.index.Delete(ctx, vectorindex.NoteCollection(r.schema).Name, []string{noteID}); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to remove note from index",
			"note_id", noteID, "error", err)
	}
	return true, nil
}
