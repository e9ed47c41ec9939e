package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// Foreign keys, WAL journaling and a busy timeout are set through the DSN so
// every pooled connection gets them. The pool is capped at a single
// connection: all reads and writes serialize through one handle.
func New(path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the entity and task tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS vaults (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			root_path TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'in_progress',
			created_at DATETIME NOT NULL,
			completed_at DATETIME,
			error TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS files (
			id TEXT PRIMARY KEY,
			vault_id TEXT NOT NULL,
			name TEXT NOT NULL,
			extension TEXT NOT NULL DEFAULT 'md',
			content TEXT NOT NULL DEFAULT '',
			embedding_status TEXT NOT NULL DEFAULT 'in_progress',
			embedding_task_id TEXT,
			embedding_stale INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (vault_id) REFERENCES vaults(id) ON DELETE CASCADE,
			FOREIGN KEY (embedding_task_id) REFERENCES tasks(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_files_vault_name ON files(vault_id, name);`,
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			vault_id TEXT NOT NULL,
			file_id TEXT NOT NULL,
			content TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			dropped INTEGER NOT NULL DEFAULT 0,
			embedding_status TEXT NOT NULL DEFAULT 'in_progress',
			embedding_task_id TEXT,
			created_at DATETIME NOT NULL,
			accessed_at DATETIME NOT NULL,
			FOREIGN KEY (vault_id) REFERENCES vaults(id) ON DELETE CASCADE,
			FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE,
			FOREIGN KEY (embedding_task_id) REFERENCES tasks(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notes_vault_file ON notes(vault_id, file_id);`,
		`CREATE TABLE IF NOT EXISTS authors (
			file_id TEXT PRIMARY KEY,
			recommended_authors TEXT NOT NULL DEFAULT '[]',
			queries TEXT NOT NULL DEFAULT '[]',
			author_status TEXT NOT NULL DEFAULT 'in_progress',
			author_task_id TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE,
			FOREIGN KEY (author_task_id) REFERENCES tasks(id)
		);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// Files tables created before edits during a live task were tracked.
	return addColumn(db, "files", "embedding_stale", "INTEGER NOT NULL DEFAULT 0")
}

// addColumn adds a column to an existing table unless it is already there.
func addColumn(db *sql.DB, table, column, decl string) error {
	rows, err := db.Query(fmt.Sprintf("SELECT name FROM pragma_table_info('%s')", table))
	if err != nil {
		return fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	return nil
}

// MigrateEmbeddings creates the embedding tables named by the given schema.
// Tables for different embedding models coexist; switching models starts
// from empty tables rather than mixing vector spaces.
func MigrateEmbeddings(db *sql.DB, schema EmbedSchema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			note_id TEXT PRIMARY KEY,
			embedding BLOB NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE
		);`, schema.NoteTable()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			vault_id TEXT NOT NULL,
			file_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			embedding BLOB NOT NULL,
			start_line INTEGER NOT NULL DEFAULT 0,
			end_line INTEGER NOT NULL DEFAULT 0,
			line_numbers TEXT NOT NULL DEFAULT '[]',
			line_map TEXT NOT NULL DEFAULT '{}',
			document_title TEXT NOT NULL DEFAULT '',
			metadata_separator TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			PRIMARY KEY (vault_id, file_id, node_id),
			FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
		);`, schema.EssayTable()),
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create embedding table: %w", err)
		}
	}

	return nil
}
