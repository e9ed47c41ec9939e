package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"morph/internal/embedding"
	"morph/internal/inference"
	"morph/internal/retrieval"
	"morph/internal/storage"
)

var testSchema = storage.EmbedSchema{ModelID: "test-model", EmbedType: "Test-Embed", Dimensions: 3, M: 16, EfConstruction: 50}

// testEssay has a three line frontmatter block, so body line n is line n+3
// of the stored content.
const testEssay = "---\ntitle: Essay\n---\n# Intro\n\nbody\n## Part\n\nmore"

type testEnv struct {
	vaults  *storage.VaultRepo
	files   *storage.FileRepo
	notes   *storage.NoteRepo
	authors *storage.AuthorRepo
	tasks   *storage.TaskRepo
	results *storage.ResultRepo
	vaultID string
	fileID  string
}

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

	env := &testEnv{
		vaults:  storage.NewVaultRepo(db),
		files:   storage.NewFileRepo(db),
		notes:   storage.NewNoteRepo(db),
		authors: storage.NewAuthorRepo(db),
		tasks:   storage.NewTaskRepo(db),
		results: storage.NewResultRepo(db, testSchema),
	}

	ctx := context.Background()
	vault, err := env.vaults.GetOrCreateByName(ctx, "test", "/tmp/test")
	if err != nil {
		t.Fatalf("GetOrCreateByName() error = %v", err)
	}
	file := &storage.FileRecord{ID: "f1", VaultID: vault.ID, Name: "essay", Content: testEssay}
	if _, err := env.files.Upsert(ctx, file); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	env.vaultID, env.fileID = vault.ID, file.ID
	return env
}

func (e *testEnv) addNote(t *testing.T, id, content string) {
	t.Helper()
	note := &storage.NoteRecord{ID: id, VaultID: e.vaultID, FileID: e.fileID, Content: content}
	if err := e.notes.Upsert(context.Background(), note); err != nil {
		t.Fatalf("Notes.Upsert() error = %v", err)
	}
}

// serve routes one request through a chi router holding a single route.
func serve(t *testing.T, pattern string, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	r := chi.NewRouter()
	r.Method(method, pattern, h)
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

// fakeSubmitter records submissions and answers with sub, keyed to the
// submitted entity.
type fakeSubmitter struct {
	mu      sync.Mutex
	sub     embedding.Submission
	notes   []storage.NoteRecord
	authors []inference.AuthorRequest
	essays  []storage.FileRecord
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{sub: embedding.Submission{TaskID: "task-1", OK: true}}
}

func (f *fakeSubmitter) SubmitNote(_ context.Context, note storage.NoteRecord) embedding.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note)
	s := f.sub
	s.Kind, s.Key = embedding.KindNote, note.ID
	return s
}

func (f *fakeSubmitter) SubmitAuthors(_ context.Context, fileID string, req inference.AuthorRequest) embedding.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authors = append(f.authors, req)
	s := f.sub
	s.Kind, s.Key = embedding.KindAuthor, fileID
	return s
}

func (f *fakeSubmitter) SubmitEssay(_ context.Context, file storage.FileRecord) embedding.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.essays = append(f.essays, file)
	s := f.sub
	s.Kind, s.Key = embedding.KindEssay, file.ID
	return s
}

type fakeSearcher struct {
	hits []retrieval.Hit
	err  error
	k    int
}

func (f *fakeSearcher) SimilarNotes(_ context.Context, _ string, k int) ([]retrieval.Hit, error) {
	f.k = k
	return f.hits, f.err
}

func (f *fakeSearcher) SimilarEssays(_ context.Context, _, _ string, k int) ([]retrieval.Hit, error) {
	f.k = k
	return f.hits, f.err
}
