// Package vectorindex provides approximate nearest neighbour search over
// note and essay chunk embeddings.
package vectorindex

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index.go -package=mocks morph/internal/vectorindex Index

import (
	"context"
	"fmt"
	"regexp"
)

// Point is one vector with its payload.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult is a point returned by a search, best first.
// Score is cosine similarity.
type SearchResult struct {
	ID    string
	Score float32
	Meta  map[string]any
}

// Collection describes an index and the HNSW parameters advertised by the
// embedding service. Backends without tunable graphs ignore M and EfConstruction.
type Collection struct {
	Name           string
	Dimensions     int
	M              int
	EfConstruction int
}

// Index defines the interface for vector index operations.
type Index interface {
	// Ensure creates the collection if it does not exist.
	Ensure(ctx context.Context, c Collection) error

	// Upsert inserts or replaces points by id.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to k nearest points whose payload matches every
	// filter by equality.
	Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error)

	// Delete removes points by id. Unknown ids are ignored.
	Delete(ctx context.Context, collection string, ids []string) error
}

var collectionName = regexp.MustCompile(`^[a-z0-9_]+$`)

func validateCollection(name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// matches reports whether meta carries every filter value.
func matches(meta map[string]any, filters map[string]any) bool {
	for k, want := range filters {
		got, ok := meta[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// Noop is an Index that stores nothing. Searches return no results.
type Noop struct{}

// Ensure implements Index.
func (Noop) Ensure(context.Context, Collection) error { return nil }

// Upsert implements Index.
func (Noop) Upsert(context.Context, string, []Point) error { return nil }

// Delete implements Index.
func (Noop) Delete(context.Context, string, []string) error { return nil }

// Search implements Index.
func (Noop) Search(context.Context, string, []float32, int, map[string]any) ([]SearchResult, error) {
	return []SearchResult{}, nil
}
