package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

type testDB struct {
	*sql.DB
	vaultID string
	fileID  string
}

var testSchema = EmbedSchema{ModelID: "test-model", EmbedType: "Test-Embed", Dimensions: 3, M: 16, EfConstruction: 50}

// openTestDB returns a migrated database with one vault and one file.
func openTestDB(t *testing.T) *testDB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := MigrateEmbeddings(db, testSchema); err != nil {
		t.Fatalf("MigrateEmbeddings() error = %v", err)
	}

	ctx := context.Background()
	vault, err := NewVaultRepo(db).GetOrCreateByName(ctx, "test", "/tmp/test")
	if err != nil {
		t.Fatalf("GetOrCreateByName() error = %v", err)
	}
	file := &FileRecord{ID: "f1", VaultID: vault.ID, Name: "essay", Content: "# Essay\n\nbody"}
	if _, err := NewFileRepo(db).Upsert(ctx, file); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	return &testDB{DB: db, vaultID: vault.ID, fileID: file.ID}
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{
			name:    "valid path",
			path:    filepath.Join(tmpDir, "test.db"),
			wantErr: false,
		},
		{
			name:    "invalid path",
			path:    "/invalid/path/to/db.db",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := New(tt.path)

			if tt.wantErr {
				if err == nil {
					t.Errorf("New() expected error, got nil")
				}
				if db != nil {
					_ = db.Close()
				}
				return
			}

			if err != nil {
				t.Fatalf("New() unexpected error: %v", err)
			}
			if db.Stats().MaxOpenConnections != 1 {
				t.Errorf("New() MaxOpenConnections = %v, want 1", db.Stats().MaxOpenConnections)
			}
			_ = db.Close()
		})
	}
}

func TestNew_EnablesForeignKeys(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("Failed to check foreign keys: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("New() should enable foreign keys")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := Migrate(db.DB); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}
	if err := MigrateEmbeddings(db.DB, testSchema); err != nil {
		t.Fatalf("MigrateEmbeddings() second run error = %v", err)
	}

	tables := []string{"vaults", "tasks", "files", "notes", "authors", "test_embed_note_embeddings", "test_embed_essay_embeddings"}
	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s not found", table)
		}
	}
}

func TestMigrate_AddsStaleColumn(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "legacy.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	// A files table from before the stale flag.
	if _, err := db.Exec(`CREATE TABLE files (
		id TEXT PRIMARY KEY,
		vault_id TEXT NOT NULL,
		name TEXT NOT NULL,
		extension TEXT NOT NULL DEFAULT 'md',
		content TEXT NOT NULL DEFAULT '',
		embedding_status TEXT NOT NULL DEFAULT 'in_progress',
		embedding_task_id TEXT,
		updated_at DATETIME NOT NULL
	);`); err != nil {
		t.Fatalf("create legacy table error = %v", err)
	}
	if _, err := db.Exec("INSERT INTO files (id, vault_id, name, updated_at) VALUES ('f1', 'v1', 'essay', '2024-01-01')"); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := Migrate(db); err != nil {
			t.Fatalf("Migrate() run %d error = %v", i+1, err)
		}
	}

	var stale int
	if err := db.QueryRow("SELECT embedding_stale FROM files WHERE id = 'f1'").Scan(&stale); err != nil {
		t.Fatalf("select embedding_stale error = %v", err)
	}
	if stale != 0 {
		t.Errorf("embedding_stale = %d, want 0", stale)
	}
}

func TestMigrateEmbeddings_InvalidSchema(t *testing.T) {
	db := openTestDB(t)

	tests := []struct {
		name   string
		schema EmbedSchema
	}{
		{name: "missing embed type", schema: EmbedSchema{Dimensions: 3}},
		{name: "zero dimensions", schema: EmbedSchema{EmbedType: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := MigrateEmbeddings(db.DB, tt.schema); err == nil {
				t.Error("MigrateEmbeddings() expected error, got nil")
			}
		})
	}
}
