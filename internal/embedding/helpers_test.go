package embedding

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"morph/internal/inference"
	"morph/internal/storage"
)

var testSchema = storage.EmbedSchema{ModelID: "test-model", EmbedType: "Test-Embed", Dimensions: 3, M: 16, EfConstruction: 50}

const testEssay = "---\ntitle: Essay\n---\n# Essay\n\nbody"

type testEnv struct {
	stores  Stores
	results *storage.ResultRepo
	vaultID string
	fileID  string
}

// newTestEnv returns stores over a migrated database holding one vault and
// one essay file.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := storage.MigrateEmbeddings(db, testSchema); err != nil {
		t.Fatalf("MigrateEmbeddings() error = %v", err)
	}

	ctx := context.Background()
	vault, err := storage.NewVaultRepo(db).GetOrCreateByName(ctx, "test", "/tmp/test")
	if err != nil {
		t.Fatalf("GetOrCreateByName() error = %v", err)
	}

	results := storage.NewResultRepo(db, testSchema)
	stores := Stores{
		Tasks:          storage.NewTaskRepo(db),
		Files:          storage.NewFileRepo(db),
		Notes:          storage.NewNoteRepo(db),
		Authors:        storage.NewAuthorRepo(db),
		NoteEmbeddings: storage.NewNoteEmbeddingRepo(db, testSchema),
		Chunks:         storage.NewChunkEmbeddingRepo(db, testSchema),
		Results:        results,
	}

	file := &storage.FileRecord{ID: "f1", VaultID: vault.ID, Name: "essay", Content: testEssay}
	if _, err := stores.Files.Upsert(ctx, file); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	return &testEnv{stores: stores, results: results, vaultID: vault.ID, fileID: file.ID}
}

func (e *testEnv) file(t *testing.T) storage.FileRecord {
	t.Helper()
	f, err := e.stores.Files.Get(context.Background(), e.fileID)
	if err != nil {
		t.Fatalf("Files.Get() error = %v", err)
	}
	return *f
}

func (e *testEnv) addNote(t *testing.T, id, content string) storage.NoteRecord {
	t.Helper()
	note := storage.NoteRecord{ID: id, VaultID: e.vaultID, FileID: e.fileID, Content: content}
	if err := e.stores.Notes.Upsert(context.Background(), &note); err != nil {
		t.Fatalf("Notes.Upsert() error = %v", err)
	}
	return note
}

// claim records taskID and points the entity at it, as a successful
// submission would.
func (e *testEnv) claim(t *testing.T, kind Kind, key, taskID string) {
	t.Helper()
	ctx := context.Background()
	if err := e.stores.Tasks.EnsureExists(ctx, taskID, storage.StatusInProgress, time.Time{}); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	won, err := e.stores.tracking(kind).Claim(ctx, key, taskID)
	if err != nil || !won {
		t.Fatalf("Claim(%s, %s) = %v, %v", key, taskID, won, err)
	}
}

func (e *testEnv) tracking(t *testing.T, kind Kind, key string) storage.Tracking {
	t.Helper()
	tr, err := e.stores.tracking(kind).Tracking(context.Background(), key)
	if err != nil {
		t.Fatalf("Tracking(%s) error = %v", key, err)
	}
	return tr
}

func (e *testEnv) task(t *testing.T, id string) *storage.TaskRecord {
	t.Helper()
	task, err := e.stores.Tasks.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Tasks.Get(%s) error = %v", id, err)
	}
	return task
}

func remoteTask(id, status string) *inference.Task {
	return &inference.Task{TaskID: id, Status: status, CreatedAt: "2024-01-01T00:00:00"}
}

// fastConfig polls and retries on millisecond timers.
func fastConfig() PollerConfig {
	return PollerConfig{
		Intervals: Intervals{Note: time.Millisecond, Essay: time.Millisecond, Author: time.Millisecond},
		Retry: RetryConfig{
			MaxRetries:     3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
			Multiplier:     2,
		},
	}
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.snaps))
	for _, s := range r.snaps {
		out = append(out, s.State)
	}
	return out
}
