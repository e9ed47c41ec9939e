package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FileStore defines the interface for essay storage operations.
type FileStore interface {
	TrackingStore
	// Get gets a file by id. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*FileRecord, error)
	// Upsert inserts a file or updates its name and content.
	// Reports whether the stored content changed.
	Upsert(ctx context.Context, file *FileRecord) (bool, error)
	// ListInProgress lists files waiting on a task, oldest first.
	ListInProgress(ctx context.Context, limit int) ([]FileRecord, error)
	// CountByStatus counts the files of a vault per embedding status.
	CountByStatus(ctx context.Context, vaultID string) (map[Status]int, error)
	// MarkStale flags a file whose content changed under a live task.
	MarkStale(ctx context.Context, id string) error
	// TakeStale clears the stale flag and reports whether it was set.
	TakeStale(ctx context.Context, id string) (bool, error)
}

// FileRepo provides methods for file operations.
// It implements the FileStore interface.
type FileRepo struct {
	db *sql.DB
}

// NewFileRepo creates a new FileRepo.
func NewFileRepo(db *sql.DB) *FileRepo {
	return &FileRepo{db: db}
}

const fileColumns = "id, vault_id, name, extension, content, embedding_status, embedding_task_id, updated_at"

// Get gets a file by id. Returns ErrNotFound if not found.
func (r *FileRepo) Get(ctx context.Context, id string) (*FileRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query file: %w", err)
	}
	return file, nil
}

// Upsert inserts a file or updates its name and content.
// New files start in_progress without a task, which marks them as never
// submitted. Status and task id of an existing file are preserved.
func (r *FileRepo) Upsert(ctx context.Context, file *FileRecord) (bool, error) {
	if file.Extension == "" {
		file.Extension = "md"
	}

	existing, err := r.Get(ctx, file.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("failed to check existing file: %w", err)
	}

	file.UpdatedAt = time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO files (id, vault_id, name, extension, content, embedding_status, updated_at)
		 VALUES (?, ?, ?, ?, ?, 'in_progress', ?)
		 ON CONFLICT (id) DO UPDATE SET
		 name = excluded.name, extension = excluded.extension, content = excluded.content, updated_at = excluded.updated_at`,
		file.ID, file.VaultID, file.Name, file.Extension, file.Content, file.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert file: %w", err)
	}

	if existing == nil {
		file.EmbeddingStatus = StatusInProgress
		file.EmbeddingTaskID = ""
		return true, nil
	}
	file.EmbeddingStatus = existing.EmbeddingStatus
	file.EmbeddingTaskID = existing.EmbeddingTaskID
	return existing.Content != file.Content, nil
}

// ListInProgress lists files waiting on a task, oldest first.
func (r *FileRepo) ListInProgress(ctx context.Context, limit int) ([]FileRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+fileColumns+` FROM files
		 WHERE embedding_status = 'in_progress' AND embedding_task_id IS NOT NULL
		 ORDER BY updated_at LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var files []FileRecord
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, *file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return files, nil
}

// CountByStatus counts the files of a vault per embedding status. Files
// that were never submitted are counted as in progress.
func (r *FileRepo) CountByStatus(ctx context.Context, vaultID string) (map[Status]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT embedding_status, COUNT(*) FROM files WHERE vault_id = ? GROUP BY embedding_status",
		vaultID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

// MarkStale flags the file so its embedding is redone once the current
// task finishes.
func (r *FileRepo) MarkStale(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE files SET embedding_stale = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to mark file stale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TakeStale clears the stale flag. Only one caller observes true for each
// MarkStale.
func (r *FileRepo) TakeStale(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE files SET embedding_stale = 0 WHERE id = ? AND embedding_stale = 1", id)
	if err != nil {
		return false, fmt.Errorf("failed to clear stale flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// Tracking returns the file's embedding status and current task.
func (r *FileRepo) Tracking(ctx context.Context, id string) (Tracking, error) {
	return filesTracking.tracking(ctx, r.db, id)
}

// Claim marks the file in progress on taskID unless it already has a live task.
func (r *FileRepo) Claim(ctx context.Context, id, taskID string) (bool, error) {
	return filesTracking.claim(ctx, r.db, id, taskID)
}

// SetStatus writes the file's embedding status.
func (r *FileRepo) SetStatus(ctx context.Context, id string, status Status) error {
	return filesTracking.setStatus(ctx, r.db, id, status)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*FileRecord, error) {
	var file FileRecord
	var status string
	var taskID sql.NullString
	if err := row.Scan(&file.ID, &file.VaultID, &file.Name, &file.Extension, &file.Content,
		&status, &taskID, &file.UpdatedAt); err != nil {
		return nil, err
	}
	file.EmbeddingStatus = Status(status)
	file.EmbeddingTaskID = taskID.String
	return &file, nil
}
