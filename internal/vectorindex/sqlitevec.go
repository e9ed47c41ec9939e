package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"morph/internal/contextutil"
	"morph/internal/storage"
)

// overfetch widens filtered KNN queries, since vec0 cannot filter on the
// payload and matching happens after the nearest neighbours are read.
const overfetch = 4

// SQLiteVec implements Index with the sqlite-vec vec0 virtual table.
// It keeps its own database file so KNN scans never contend with the
// main database connection.
type SQLiteVec struct {
	db *sql.DB
}

// NewSQLiteVec opens (or creates) the index database at path.
func NewSQLiteVec(path string) (*SQLiteVec, error) {
	sqlite_vec.Auto()

	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	db.SetMaxOpenConns(1)

	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	return &SQLiteVec{db: db}, nil
}

// Close releases the index database.
func (s *SQLiteVec) Close() error {
	return s.db.Close()
}

// Ensure creates the id mapping table and the vec0 table for c.
// vec0 rows are keyed by integer rowid, so string ids go through the
// mapping table.
func (s *SQLiteVec) Ensure(ctx context.Context, c Collection) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := validateCollection(c.Name); err != nil {
		return err
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("collection %s: dimensions must be greater than 0", c.Name)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_docs (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			meta TEXT NOT NULL DEFAULT '{}'
		)`, c.Name)); err != nil {
		return fmt.Errorf("failed to create %s_docs: %w", c.Name, err)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s_vec USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Name, c.Dimensions,
	)); err != nil {
		return fmt.Errorf("failed to create %s_vec: %w", c.Name, err)
	}

	logger.DebugContext(ctx, "vector collection ready", "collection", c.Name, "dimensions", c.Dimensions)
	return nil
}

// Upsert inserts or replaces points. vec0 has no UPDATE, so an existing
// vector is deleted and re-inserted under the same rowid.
func (s *SQLiteVec) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := validateCollection(collection); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, p := range points {
		meta, err := json.Marshal(orEmptyMeta(p.Meta))
		if err != nil {
			return fmt.Errorf("failed to encode payload for %s: %w", p.ID, err)
		}
		blob := storage.EncodeVector(p.Vec)

		var rowID int64
		err = tx.QueryRowContext(ctx,
			fmt.Sprintf("SELECT rowid FROM %s_docs WHERE doc_id = ?", collection), p.ID,
		).Scan(&rowID)

		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("UPDATE %s_docs SET meta = ? WHERE rowid = ?", collection), string(meta), rowID,
			); err != nil {
				return fmt.Errorf("failed to update point %s: %w", p.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s_vec WHERE rowid = ?", collection), rowID,
			); err != nil {
				return fmt.Errorf("failed to delete old vector for %s: %w", p.ID, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO %s_docs (doc_id, meta) VALUES (?, ?)", collection), p.ID, string(meta),
			)
			if err != nil {
				return fmt.Errorf("failed to insert point %s: %w", p.ID, err)
			}
			if rowID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("failed to read rowid for %s: %w", p.ID, err)
			}
		default:
			return fmt.Errorf("failed to look up point %s: %w", p.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s_vec (rowid, embedding) VALUES (?, ?)", collection), rowID, blob,
		); err != nil {
			return fmt.Errorf("failed to insert vector for %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Search runs a KNN query and applies filters to the payload.
func (s *SQLiteVec) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	fetch := k
	if len(filters) > 0 {
		fetch = k * overfetch
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT d.doc_id, d.meta, v.distance
		FROM %[1]s_vec v
		INNER JOIN %[1]s_docs d ON d.rowid = v.rowid
		WHERE v.embedding MATCH ? AND v.k = ?
		ORDER BY v.distance`, collection),
		storage.EncodeVector(query), fetch,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	results := make([]SearchResult, 0, k)
	for rows.Next() {
		var id, rawMeta string
		var distance float64
		if err := rows.Scan(&id, &rawMeta, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		meta := map[string]any{}
		if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
			return nil, fmt.Errorf("failed to decode payload for %s: %w", id, err)
		}
		if !matches(meta, filters) {
			continue
		}
		if len(results) < k {
			results = append(results, SearchResult{ID: id, Score: float32(1 - distance), Meta: meta})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return results, nil
}

// Delete removes points by id.
func (s *SQLiteVec) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := validateCollection(collection); err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %[1]s_vec WHERE rowid IN (SELECT rowid FROM %[1]s_docs WHERE doc_id IN (%[2]s))`,
		collection, placeholders), args...,
	); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s_docs WHERE doc_id IN (%s)`, collection, placeholders), args...,
	); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func orEmptyMeta(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
