package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ResultWriter persists finished task results. Each call is one transaction
// covering the embedding rows, the entity status and the task row.
type ResultWriter interface {
	SaveNoteResult(ctx context.Context, taskID string, rec NoteEmbeddingRecord) error
	SaveEssayResult(ctx context.Context, taskID, vaultID, fileID string, chunks []ChunkEmbeddingRecord) error
	SaveAuthorResult(ctx context.Context, taskID, fileID string, authors, queries []string) error
}

// ResultRepo implements ResultWriter against the tables named by its schema.
type ResultRepo struct {
	db     *sql.DB
	schema EmbedSchema
}

// NewResultRepo creates a new ResultRepo.
func NewResultRepo(db *sql.DB, schema EmbedSchema) *ResultRepo {
	return &ResultRepo{db: db, schema: schema}
}

// SaveNoteResult upserts the note vector and marks the note successful.
func (r *ResultRepo) SaveNoteResult(ctx context.Context, taskID string, rec NoteEmbeddingRecord) error {
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("note %s: empty embedding", rec.NoteID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (note_id, embedding, created_at) VALUES (?, ?, ?)
			 ON CONFLICT (note_id) DO UPDATE SET embedding = excluded.embedding, created_at = excluded.created_at`,
				r.schema.NoteTable()),
			rec.NoteID, EncodeVector(rec.Embedding), rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert note embedding: %w", err)
		}
		if err := notesTracking.setStatus(ctx, tx, rec.NoteID, StatusSuccess); err != nil {
			return err
		}
		return completeTask(ctx, tx, taskID, StatusSuccess, "")
	})
}

// SaveEssayResult replaces every chunk of the file with chunks and marks
// the file successful.
func (r *ResultRepo) SaveEssayResult(ctx context.Context, taskID, vaultID, fileID string, chunks []ChunkEmbeddingRecord) error {
	now := time.Now().UTC()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE vault_id = ? AND file_id = ?", r.schema.EssayTable()),
			vaultID, fileID,
		); err != nil {
			return fmt.Errorf("failed to delete old chunk embeddings: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (vault_id, file_id, node_id, embedding, start_line, end_line, line_numbers, line_map,
			 document_title, metadata_separator, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.schema.EssayTable()))
		if err != nil {
			return fmt.Errorf("failed to prepare chunk insert: %w", err)
		}
		defer func() {
			_ = stmt.Close()
		}()

		for _, c := range chunks {
			if len(c.Embedding) == 0 {
				return fmt.Errorf("chunk %s: empty embedding", c.NodeID)
			}
			lineNumbers, err := json.Marshal(orEmptyInts(c.LineNumbers))
			if err != nil {
				return fmt.Errorf("failed to encode line numbers: %w", err)
			}
			lineMap, err := json.Marshal(orEmptyMap(c.LineMap))
			if err != nil {
				return fmt.Errorf("failed to encode line map: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, vaultID, fileID, c.NodeID, EncodeVector(c.Embedding),
				c.StartLine, c.EndLine, string(lineNumbers), string(lineMap),
				c.DocumentTitle, c.MetadataSeparator, now,
			); err != nil {
				return fmt.Errorf("failed to insert chunk %s: %w", c.NodeID, err)
			}
		}

		if err := filesTracking.setStatus(ctx, tx, fileID, StatusSuccess); err != nil {
			return err
		}
		return completeTask(ctx, tx, taskID, StatusSuccess, "")
	})
}

// SaveAuthorResult stores the recommended authors and marks the request successful.
func (r *ResultRepo) SaveAuthorResult(ctx context.Context, taskID, fileID string, authors, queries []string) error {
	authorsJSON, err := json.Marshal(orEmptyStrings(authors))
	if err != nil {
		return fmt.Errorf("failed to encode authors: %w", err)
	}
	queriesJSON, err := json.Marshal(orEmptyStrings(queries))
	if err != nil {
		return fmt.Errorf("failed to encode queries: %w", err)
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO authors (file_id, recommended_authors, queries, author_status, author_task_id, created_at)
			 VALUES (?, ?, ?, 'success', NULL, ?)
			 ON CONFLICT (file_id) DO UPDATE SET
			 recommended_authors = excluded.recommended_authors, queries = excluded.queries,
			 author_status = 'success', author_task_id = NULL, created_at = excluded.created_at`,
			fileID, string(authorsJSON), string(queriesJSON), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert authors: %w", err)
		}
		return completeTask(ctx, tx, taskID, StatusSuccess, "")
	})
}

// ResetEssay drops the stored chunks of a file whose content changed so the
// next submission re-embeds it. Files waiting on a live task are left alone
// and ResetEssay reports false.
func (r *ResultRepo) ResetEssay(ctx context.Context, vaultID, fileID string) (bool, error) {
	return r.reset(ctx, filesTracking, fileID,
		fmt.Sprintf("DELETE FROM %s WHERE vault_id = ? AND file_id = ?", r.schema.EssayTable()),
		vaultID, fileID,
	)
}

// ResetNote drops the stored vector of a note whose content changed. Notes
// waiting on a live task are left alone and ResetNote reports false.
func (r *ResultRepo) ResetNote(ctx context.Context, noteID string) (bool, error) {
	return r.reset(ctx, notesTracking, noteID,
		fmt.Sprintf("DELETE FROM %s WHERE note_id = ?", r.schema.NoteTable()),
		noteID,
	)
}

// reset returns an entity to the unsubmitted state and runs deleteStmt in
// the same transaction.
func (r *ResultRepo) reset(ctx context.Context, t trackedTable, id, deleteStmt string, args ...any) (bool, error) {
	var reset bool
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %[1]s SET %[2]s = 'in_progress', %[3]s = NULL
			 WHERE %[4]s = ? AND (%[2]s != 'in_progress' OR %[3]s IS NULL)`,
				t.table, t.statusCol, t.taskCol, t.idCol),
			id,
		)
		if err != nil {
			return fmt.Errorf("failed to reset %s status: %w", t.table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, deleteStmt, args...); err != nil {
			return fmt.Errorf("failed to delete embeddings: %w", err)
		}
		reset = true
		return nil
	})
	return reset, err
}

func (r *ResultRepo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func orEmptyInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func orEmptyStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
