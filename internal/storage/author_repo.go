package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AuthorStore defines the interface for author recommendation storage.
// Records are keyed by file id.
type AuthorStore interface {
	TrackingStore
	// Get gets the recommendations for a file. Returns ErrNotFound if none.
	Get(ctx context.Context, fileID string) (*AuthorRecord, error)
}

// AuthorRepo provides methods for author recommendation operations.
type AuthorRepo struct {
	db *sql.DB
}

// NewAuthorRepo creates a new AuthorRepo.
func NewAuthorRepo(db *sql.DB) *AuthorRepo {
	return &AuthorRepo{db: db}
}

// Get gets the recommendations for a file. Returns ErrNotFound if none.
func (r *AuthorRepo) Get(ctx context.Context, fileID string) (*AuthorRecord, error) {
	var rec AuthorRecord
	var authorsJSON, queriesJSON, status string
	var taskID sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT file_id, recommended_authors, queries, author_status, author_task_id, created_at
		 FROM authors WHERE file_id = ?`,
		fileID,
	).Scan(&rec.FileID, &authorsJSON, &queriesJSON, &status, &taskID, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query authors: %w", err)
	}

	if err := json.Unmarshal([]byte(authorsJSON), &rec.RecommendedAuthors); err != nil {
		return nil, fmt.Errorf("failed to decode recommended authors: %w", err)
	}
	if err := json.Unmarshal([]byte(queriesJSON), &rec.Queries); err != nil {
		return nil, fmt.Errorf("failed to decode queries: %w", err)
	}
	rec.Status = Status(status)
	rec.TaskID = taskID.String
	return &rec, nil
}

// Tracking returns the author request status for a file.
func (r *AuthorRepo) Tracking(ctx context.Context, fileID string) (Tracking, error) {
	return authorsTracking.tracking(ctx, r.db, fileID)
}

// Claim creates the author row on first submission. An existing row is
// only moved to taskID when it is not already waiting on a live task.
func (r *AuthorRepo) Claim(ctx context.Context, fileID, taskID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO authors (file_id, author_status, author_task_id, created_at)
		 VALUES (?, 'in_progress', ?, ?)
		 ON CONFLICT (file_id) DO UPDATE SET author_status = 'in_progress', author_task_id = excluded.author_task_id
		 WHERE authors.author_status != 'in_progress' OR authors.author_task_id IS NULL`,
		fileID, taskID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim authors: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// SetStatus writes the author request status for a file.
func (r *AuthorRepo) SetStatus(ctx context.Context, fileID string, status Status) error {
	return authorsTracking.setStatus(ctx, r.db, fileID, status)
}
