package storage

import (
	"fmt"
	"regexp"
	"strings"
)

var unsafeIdentifierChars = regexp.MustCompile(`[^a-z0-9_]`)

// EmbedSchema describes the embedding model the local tables are sized for.
// It is resolved once at startup from the inference service metadata and
// every embedding table name is derived from it.
type EmbedSchema struct {
	ModelID        string
	EmbedType      string
	Dimensions     int
	M              int
	EfConstruction int
}

// SanitizeIdentifier lower-cases s and replaces every character outside
// [a-z0-9_] with an underscore, making it safe to splice into DDL.
func SanitizeIdentifier(s string) string {
	return unsafeIdentifierChars.ReplaceAllString(strings.ToLower(s), "_")
}

// Validate reports whether the schema can produce usable tables.
func (s EmbedSchema) Validate() error {
	if SanitizeIdentifier(s.EmbedType) == "" {
		return fmt.Errorf("embed type is required")
	}
	if s.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be greater than 0, got %d", s.Dimensions)
	}
	return nil
}

// Prefix is the sanitized embed type shared by all table names.
func (s EmbedSchema) Prefix() string {
	return SanitizeIdentifier(s.EmbedType)
}

// NoteTable is the table holding one vector per note.
func (s EmbedSchema) NoteTable() string {
	return s.Prefix() + "_note_embeddings"
}

// EssayTable is the table holding one vector per essay chunk.
func (s EmbedSchema) EssayTable() string {
	return s.Prefix() + "_essay_embeddings"
}

// IndexName is the name of the approximate nearest neighbour index built
// over the given table.
func IndexName(table string) string {
	return "idx_" + table + "_hnsw"
}
