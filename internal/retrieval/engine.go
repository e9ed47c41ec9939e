// Package retrieval finds the notes relevant to the part of an essay a
// reader is looking at, and runs corpus-wide nearest-neighbor searches.
package retrieval

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"morph/internal/contextutil"
	"morph/internal/storage"
)

// DefaultThreshold is the lowest similarity reported as a match.
const DefaultThreshold = 0.5

// loadConcurrency bounds the number of notes loaded at once.
const loadConcurrency = 4

// ContextMatch positions a note at its best matching chunk of an essay.
// It is computed on demand and never stored.
type ContextMatch struct {
	Note       storage.NoteRecord
	Similarity float64
	StartLine  int
	EndLine    int
	// LineNumber is the line the note is anchored to.
	LineNumber int
}

// NoteReader loads note records.
type NoteReader interface {
	Get(ctx context.Context, id string) (*storage.NoteRecord, error)
}

// RetryConfig bounds the retries of a whole retrieval.
type RetryConfig struct {
	// Attempts is the total number of tries.
	// Default: 3
	Attempts int

	// InitialBackoff is the delay before the second try.
	// Default: 500ms
	InitialBackoff time.Duration

	// Multiplier grows the delay after each try.
	// Default: 1.5
	Multiplier float64
}

// DefaultRetryConfig returns the retry configuration for retrievals.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:       3,
		InitialBackoff: 500 * time.Millisecond,
		Multiplier:     1.5,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *RetryConfig) ApplyDefaults() {
	defaults := DefaultRetryConfig()
	if c.Attempts <= 0 {
		c.Attempts = defaults.Attempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.Multiplier <= 0 {
		c.Multiplier = defaults.Multiplier
	}
}

// Engine compares the notes attached to an essay against the essay's
// chunks. Both sets are small, so every note is scored against every chunk.
type Engine struct {
	notes      NoteReader
	embeddings storage.NoteEmbeddingStore
	chunks     storage.ChunkEmbeddingStore
	threshold  float64
	retry      RetryConfig
}

// NewEngine creates a new Engine with the default threshold.
func NewEngine(notes NoteReader, embeddings storage.NoteEmbeddingStore, chunks storage.ChunkEmbeddingStore, retry RetryConfig) *Engine {
	retry.ApplyDefaults()
	return &Engine{
		notes:      notes,
		embeddings: embeddings,
		chunks:     chunks,
		threshold:  DefaultThreshold,
		retry:      retry,
	}
}

// FindSimilarNotes returns the notes whose best chunk in the file scores
// at least the threshold, most similar first. Retrieval is best effort:
// after the retries are exhausted it returns an empty slice.
func (e *Engine) FindSimilarNotes(ctx context.Context, fileID, vaultID string, noteIDs []string) []ContextMatch {
	logger := contextutil.LoggerFromContext(ctx)
	if fileID == "" || vaultID == "" || len(noteIDs) == 0 {
		return []ContextMatch{}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retry.InitialBackoff
	b.Multiplier = e.retry.Multiplier
	b.RandomizationFactor = 0

	matches, err := backoff.Retry(ctx, func() ([]ContextMatch, error) {
		return e.findSimilarNotes(ctx, fileID, vaultID, noteIDs)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(e.retry.Attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "retrieval failed, retrying", "file_id", fileID, "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		logger.ErrorContext(ctx, "failed to find similar notes", "file_id", fileID, "error", err)
		return []ContextMatch{}
	}
	return matches
}

func (e *Engine) findSimilarNotes(ctx context.Context, fileID, vaultID string, noteIDs []string) ([]ContextMatch, error) {
	chunks, err := e.chunks.ListByFile(ctx, vaultID, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return []ContextMatch{}, nil
	}

	var mu sync.Mutex
	matches := make([]ContextMatch, 0, len(noteIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for _, id := range noteIDs {
		g.Go(func() error {
			match, ok := e.matchNote(gctx, id, chunks)
			if !ok {
				return gctx.Err()
			}
			mu.Lock()
			matches = append(matches, match)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(matches, func(a, b ContextMatch) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Note.ID, b.Note.ID)
	})
	return matches, nil
}

// matchNote scores one note. Notes that cannot be loaded or fall below the
// threshold are reported as no match and never fail the retrieval.
func (e *Engine) matchNote(ctx context.Context, noteID string, chunks []storage.ChunkEmbeddingRecord) (ContextMatch, bool) {
	logger := contextutil.LoggerFromContext(ctx).With("note_id", noteID)

	emb, err := e.embeddings.Get(ctx, noteID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && ctx.Err() == nil {
			logger.WarnContext(ctx, "failed to load note embedding", "error", err)
		}
		return ContextMatch{}, false
	}

	best, score := bestChunk(emb.Embedding, chunks)
	if best < 0 || score < e.threshold {
		return ContextMatch{}, false
	}

	note, err := e.notes.Get(ctx, noteID)
	if err != nil {
		if ctx.Err() == nil {
			logger.WarnContext(ctx, "failed to load note", "error", err)
		}
		return ContextMatch{}, false
	}

	c := chunks[best]
	return ContextMatch{
		Note:       *note,
		Similarity: score,
		StartLine:  c.StartLine,
		EndLine:    c.EndLine,
		LineNumber: c.StartLine,
	}, true
}

// bestChunk returns the index and similarity of the chunk closest to vec.
// The first chunk wins ties. Returns -1 if no chunk is comparable.
func bestChunk(vec []float32, chunks []storage.ChunkEmbeddingRecord) (int, float64) {
	best, score := -1, math.Inf(-1)
	for i, c := range chunks {
		sim, ok := cosineSimilarity(vec, c.Embedding)
		if !ok {
			continue
		}
		if sim > score {
			best, score = i, sim
		}
	}
	return best, score
}

// cosineSimilarity returns the cosine of the angle between a and b.
// ok is false for vectors of different or zero length and for zero vectors.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
