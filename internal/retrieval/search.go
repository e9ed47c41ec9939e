package retrieval

import (
	"context"
	"fmt"

	"morph/internal/storage"
	"morph/internal/vectorindex"
)

// DefaultK is the number of neighbours returned when none is requested.
const DefaultK = 5

// Hit is one search result. ID is a note id for note searches and a file
// id for essay searches.
type Hit struct {
	ID    string
	Score float32
}

// Searcher runs nearest-neighbor queries against the vector index.
type Searcher struct {
	index      vectorindex.Index
	schema     storage.EmbedSchema
	embeddings storage.NoteEmbeddingStore
	chunks     storage.ChunkEmbeddingStore
}

// NewSearcher creates a new Searcher.
func NewSearcher(index vectorindex.Index, schema storage.EmbedSchema, embeddings storage.NoteEmbeddingStore, chunks storage.ChunkEmbeddingStore) *Searcher {
	return &Searcher{index: index, schema: schema, embeddings: embeddings, chunks: chunks}
}

// SimilarNotes returns the k notes closest to noteID, excluding itself.
// Returns storage.ErrNotFound if the note has no embedding.
func (s *Searcher) SimilarNotes(ctx context.Context, noteID string, k int) ([]Hit, error) {
	if k <= 0 {
		k = DefaultK
	}

	emb, err := s.embeddings.Get(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load note embedding: %w", err)
	}

	results, err := s.index.Search(ctx, vectorindex.NoteCollection(s.schema).Name, emb.Embedding, k+1, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}

	hits := make([]Hit, 0, k)
	for _, r := range results {
		if r.ID == noteID {
			continue
		}
		hits = append(hits, Hit{ID: r.ID, Score: r.Score})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// SimilarEssays returns up to k other files in the vault whose chunks lie
// closest to the centroid of fileID's chunks. Each file is scored by its
// best chunk. Returns storage.ErrNotFound if the file has no chunks.
func (s *Searcher) SimilarEssays(ctx context.Context, vaultID, fileID string, k int) ([]Hit, error) {
	if k <= 0 {
		k = DefaultK
	}

	chunks, err := s.chunks.ListByFile(ctx, vaultID, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	query := centroid(chunks)
	if query == nil {
		return nil, fmt.Errorf("file %s has no chunks: %w", fileID, storage.ErrNotFound)
	}

	// Several chunks of one file can crowd the top of the list, so fetch
	// enough to cover k distinct files in the common case.
	fetch := (k + 1) * 4
	results, err := s.index.Search(ctx, vectorindex.EssayCollection(s.schema).Name, query, fetch,
		map[string]any{"vault_id": vaultID})
	if err != nil {
		return nil, fmt.Errorf("failed to search essays: %w", err)
	}

	seen := map[string]bool{fileID: true}
	hits := make([]Hit, 0, k)
	for _, r := range results {
		id, _ := r.Meta["file_id"].(string)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		hits = append(hits, Hit{ID: id, Score: r.Score})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// centroid averages the chunk vectors that share the first chunk's
// dimension. Returns nil for no usable chunks.
func centroid(chunks []storage.ChunkEmbeddingRecord) []float32 {
	if len(chunks) == 0 || len(chunks[0].Embedding) == 0 {
		return nil
	}
	dims := len(chunks[0].Embedding)
	sum := make([]float64, dims)
	n := 0
	for _, c := range chunks {
		if len(c.Embedding) != dims {
			continue
		}
		for i, v := range c.Embedding {
			sum[i] += float64(v)
		}
		n++
	}
	out := make([]float32, dims)
	for i := range sum {
		out[i] = float32(sum[i] / float64(n))
	}
	return out
}
