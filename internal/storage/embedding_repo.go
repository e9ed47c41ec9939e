package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedding_stores.go -package=mocks morph/internal/storage NoteEmbeddingStore,ChunkEmbeddingStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// NoteEmbeddingStore defines read access to note vectors.
type NoteEmbeddingStore interface {
	// Get gets the embedding for a note. Returns ErrNotFound if the note has none.
	Get(ctx context.Context, noteID string) (*NoteEmbeddingRecord, error)
	// Exists reports whether the note has a stored embedding.
	Exists(ctx context.Context, noteID string) (bool, error)
}

// ChunkEmbeddingStore defines read access to essay chunk vectors.
type ChunkEmbeddingStore interface {
	// ListByFile returns every chunk of a file ordered by start line.
	// Returns an empty slice if the file has not been embedded.
	ListByFile(ctx context.Context, vaultID, fileID string) ([]ChunkEmbeddingRecord, error)
	// ExistsForFile reports whether any chunk of the file is stored.
	ExistsForFile(ctx context.Context, vaultID, fileID string) (bool, error)
}

// NoteEmbeddingRepo reads note vectors from the table named by its schema.
type NoteEmbeddingRepo struct {
	db    *sql.DB
	table string
}

// NewNoteEmbeddingRepo creates a new NoteEmbeddingRepo.
func NewNoteEmbeddingRepo(db *sql.DB, schema EmbedSchema) *NoteEmbeddingRepo {
	return &NoteEmbeddingRepo{db: db, table: schema.NoteTable()}
}

// Get gets the embedding for a note. Returns ErrNotFound if the note has none.
func (r *NoteEmbeddingRepo) Get(ctx context.Context, noteID string) (*NoteEmbeddingRecord, error) {
	var rec NoteEmbeddingRecord
	var blob []byte
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT note_id, embedding, created_at FROM %s WHERE note_id = ?", r.table),
		noteID,
	).Scan(&rec.NoteID, &blob, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note embedding: %w", err)
	}

	rec.Embedding, err = DecodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode note embedding: %w", err)
	}
	return &rec, nil
}

// Exists reports whether the note has a stored embedding.
func (r *NoteEmbeddingRepo) Exists(ctx context.Context, noteID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE note_id = ?", r.table),
		noteID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check note embedding: %w", err)
	}
	return n > 0, nil
}

// ChunkEmbeddingRepo reads essay chunk vectors from the table named by its schema.
type ChunkEmbeddingRepo struct {
	db    *sql.DB
	table string
}

// NewChunkEmbeddingRepo creates a new ChunkEmbeddingRepo.
func NewChunkEmbeddingRepo(db *sql.DB, schema EmbedSchema) *ChunkEmbeddingRepo {
	return &ChunkEmbeddingRepo{db: db, table: schema.EssayTable()}
}

// ListByFile returns every chunk of a file ordered by start line.
func (r *ChunkEmbeddingRepo) ListByFile(ctx context.Context, vaultID, fileID string) ([]ChunkEmbeddingRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT vault_id, file_id, node_id, embedding, start_line, end_line, line_numbers, line_map,
		 document_title, metadata_separator, created_at
		 FROM %s WHERE vault_id = ? AND file_id = ? ORDER BY start_line, node_id`, r.table),
		vaultID, fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk embeddings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	chunks := []ChunkEmbeddingRecord{}
	for rows.Next() {
		var c ChunkEmbeddingRecord
		var blob []byte
		var lineNumbers, lineMap string
		if err := rows.Scan(&c.VaultID, &c.FileID, &c.NodeID, &blob, &c.StartLine, &c.EndLine,
			&lineNumbers, &lineMap, &c.DocumentTitle, &c.MetadataSeparator, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk embedding: %w", err)
		}
		if c.Embedding, err = DecodeVector(blob); err != nil {
			return nil, fmt.Errorf("failed to decode chunk %s: %w", c.NodeID, err)
		}
		if err := json.Unmarshal([]byte(lineNumbers), &c.LineNumbers); err != nil {
			return nil, fmt.Errorf("failed to decode line numbers for chunk %s: %w", c.NodeID, err)
		}
		if err := json.Unmarshal([]byte(lineMap), &c.LineMap); err != nil {
			return nil, fmt.Errorf("failed to decode line map for chunk %s: %w", c.NodeID, err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return chunks, nil
}

// ExistsForFile reports whether any chunk of the file is stored.
func (r *ChunkEmbeddingRepo) ExistsForFile(ctx context.Context, vaultID, fileID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE vault_id = ? AND file_id = ?", r.table),
		vaultID, fileID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check chunk embeddings: %w", err)
	}
	return n > 0, nil
}
