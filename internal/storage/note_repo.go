package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_note_store.go -package=mocks morph/internal/storage NoteStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NoteStore defines the interface for note storage operations.
type NoteStore interface {
	TrackingStore
	// Get gets a note by id. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*NoteRecord, error)
	// Upsert inserts a note or updates its content, color and dropped flag.
	Upsert(ctx context.Context, note *NoteRecord) error
	// ListByFile lists the notes attached to a file.
	ListByFile(ctx context.Context, fileID string) ([]NoteRecord, error)
	// ListInProgress lists notes waiting on a task.
	ListInProgress(ctx context.Context, limit int) ([]NoteRecord, error)
	// ListUnsubmitted lists notes that have neither a task nor a final result.
	ListUnsubmitted(ctx context.Context, limit int) ([]NoteRecord, error)
}

// NoteRepo provides methods for note operations.
// It implements the NoteStore interface.
type NoteRepo struct {
	db *sql.DB
}

// NewNoteRepo creates a new NoteRepo.
func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

const noteColumns = "id, vault_id, file_id, content, color, dropped, embedding_status, embedding_task_id, created_at, accessed_at"

// Get gets a note by id. Returns ErrNotFound if not found.
func (r *NoteRepo) Get(ctx context.Context, id string) (*NoteRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+noteColumns+" FROM notes WHERE id = ?", id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	return note, nil
}

// Upsert inserts a note or updates its content, color and dropped flag.
// Embedding status and task id are only ever written through the tracking
// methods, so an update never disturbs an in-flight task.
func (r *NoteRepo) Upsert(ctx context.Context, note *NoteRecord) error {
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.AccessedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (id, vault_id, file_id, content, color, dropped, embedding_status, created_at, accessed_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'in_progress', ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		 content = excluded.content, color = excluded.color, dropped = excluded.dropped, accessed_at = excluded.accessed_at`,
		note.ID, note.VaultID, note.FileID, note.Content, note.Color, note.Dropped, note.CreatedAt, note.AccessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert note: %w", err)
	}
	return nil
}

// ListByFile lists the notes attached to a file, oldest first.
func (r *NoteRepo) ListByFile(ctx context.Context, fileID string) ([]NoteRecord, error) {
	return r.list(ctx, "SELECT "+noteColumns+" FROM notes WHERE file_id = ? ORDER BY created_at", fileID)
}

// ListInProgress lists notes waiting on a task.
func (r *NoteRepo) ListInProgress(ctx context.Context, limit int) ([]NoteRecord, error) {
	return r.list(ctx, "SELECT "+noteColumns+` FROM notes
		WHERE embedding_status = 'in_progress' AND embedding_task_id IS NOT NULL
		ORDER BY created_at LIMIT ?`, limit)
}

// ListUnsubmitted lists notes that have neither a task nor a final result.
func (r *NoteRepo) ListUnsubmitted(ctx context.Context, limit int) ([]NoteRecord, error) {
	return r.list(ctx, "SELECT "+noteColumns+` FROM notes
		WHERE embedding_task_id IS NULL AND embedding_status NOT IN ('success', 'failure')
		ORDER BY created_at LIMIT ?`, limit)
}

func (r *NoteRepo) list(ctx context.Context, query string, args ...any) ([]NoteRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var notes []NoteRecord
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return notes, nil
}

// Tracking returns the note's embedding status and current task.
func (r *NoteRepo) Tracking(ctx context.Context, id string) (Tracking, error) {
	return notesTracking.tracking(ctx, r.db, id)
}

// Claim marks the note in progress on taskID unless it already has a live task.
func (r *NoteRepo) Claim(ctx context.Context, id, taskID string) (bool, error) {
	return notesTracking.claim(ctx, r.db, id, taskID)
}

// SetStatus writes the note's embedding status.
func (r *NoteRepo) SetStatus(ctx context.Context, id string, status Status) error {
	return notesTracking.setStatus(ctx, r.db, id, status)
}

func scanNote(row rowScanner) (*NoteRecord, error) {
	var note NoteRecord
	var status string
	var taskID sql.NullString
	if err := row.Scan(&note.ID, &note.VaultID, &note.FileID, &note.Content, &note.Color, &note.Dropped,
		&status, &taskID, &note.CreatedAt, &note.AccessedAt); err != nil {
		return nil, err
	}
	note.EmbeddingStatus = Status(status)
	note.EmbeddingTaskID = taskID.String
	return &note, nil
}
