package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TrackingStore is implemented by every entity that owns a remote task.
type TrackingStore interface {
	// Tracking returns the entity's status and current task.
	// Returns ErrNotFound if the entity does not exist.
	Tracking(ctx context.Context, id string) (Tracking, error)
	// Claim points the entity at taskID and marks it in progress, unless it
	// already references a live task. Reports whether the claim won.
	Claim(ctx context.Context, id, taskID string) (bool, error)
	// SetStatus writes status. Terminal statuses clear the task id.
	SetStatus(ctx context.Context, id string, status Status) error
}

// trackedTable maps the tracking operations onto one entity table.
type trackedTable struct {
	table     string
	idCol     string
	statusCol string
	taskCol   string
}

var (
	filesTracking   = trackedTable{table: "files", idCol: "id", statusCol: "embedding_status", taskCol: "embedding_task_id"}
	notesTracking   = trackedTable{table: "notes", idCol: "id", statusCol: "embedding_status", taskCol: "embedding_task_id"}
	authorsTracking = trackedTable{table: "authors", idCol: "file_id", statusCol: "author_status", taskCol: "author_task_id"}
)

func (t trackedTable) tracking(ctx context.Context, db *sql.DB, id string) (Tracking, error) {
	var status string
	var taskID sql.NullString
	err := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = ?", t.statusCol, t.taskCol, t.table, t.idCol),
		id,
	).Scan(&status, &taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return Tracking{}, ErrNotFound
	}
	if err != nil {
		return Tracking{}, fmt.Errorf("failed to query %s status: %w", t.table, err)
	}
	return Tracking{Status: Status(status), TaskID: taskID.String}, nil
}

// claim is a compare-and-swap: the row only changes when it is not already
// waiting on a task, so two racing submitters cannot both win.
func (t trackedTable) claim(ctx context.Context, db *sql.DB, id, taskID string) (bool, error) {
	res, err := db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %[1]s SET %[2]s = 'in_progress', %[3]s = ?
		 WHERE %[4]s = ? AND (%[2]s != 'in_progress' OR %[3]s IS NULL)`,
			t.table, t.statusCol, t.taskCol, t.idCol),
		taskID, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", t.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

func (t trackedTable) setStatus(ctx context.Context, e execer, id string, status Status) error {
	var query string
	if status.Terminal() {
		query = fmt.Sprintf("UPDATE %s SET %s = ?, %s = NULL WHERE %s = ?", t.table, t.statusCol, t.taskCol, t.idCol)
	} else {
		query = fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", t.table, t.statusCol, t.idCol)
	}
	if _, err := e.ExecContext(ctx, query, string(status), id); err != nil {
		return fmt.Errorf("failed to update %s status: %w", t.table, err)
	}
	return nil
}
