// Package http exposes the embedding lifecycle and context retrieval as a
// local JSON API.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"morph/internal/handlers"
	"morph/internal/storage"
)

// Submitter submits notes and author requests.
type Submitter interface {
	handlers.NoteSubmitter
	handlers.AuthorSubmitter
}

// Searcher runs corpus-wide similarity searches.
type Searcher interface {
	handlers.NoteSearcher
	handlers.EssaySearcher
}

// Pipeline syncs essays from vault directories and API callers.
type Pipeline interface {
	handlers.FileSyncer
	handlers.VaultIndexer
}

// Deps holds dependencies for the HTTP router.
type Deps struct {
	// BaseCtx bounds background work started by requests.
	BaseCtx context.Context
	Schema  storage.EmbedSchema
	Checks  []handlers.Check

	Vaults  storage.VaultStore
	Files   storage.FileStore
	Notes   storage.NoteStore
	Authors storage.AuthorStore

	Pipeline     Pipeline
	NoteResetter handlers.NoteResetter
	Submitter    Submitter
	Searcher     Searcher
	Finder       handlers.ContextFinder
	Monitor      handlers.TaskMonitor
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	baseCtx := deps.BaseCtx
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	healthHandler := handlers.NewHealthHandler(deps.Checks...)
	vaultHandler := handlers.NewVaultHandler(deps.Vaults)
	fileHandler := handlers.NewFileHandler(deps.Files, deps.Vaults, deps.Pipeline, deps.Searcher)
	noteHandler := handlers.NewNoteHandler(deps.Notes, deps.Files, deps.NoteResetter, deps.Submitter, deps.Searcher)
	authorHandler := handlers.NewAuthorHandler(deps.Authors, deps.Files, deps.Submitter)
	contextHandler := handlers.NewContextHandler(deps.Files, deps.Notes, deps.Finder)
	tasksHandler := handlers.NewTasksHandler(deps.Monitor)
	indexHandler := handlers.NewIndexHandler(baseCtx, deps.Pipeline, deps.Schema)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodGet, "/tasks", tasksHandler)

		r.Post("/index", indexHandler.Trigger)
		r.Get("/index/coverage", indexHandler.Coverage)

		r.Post("/vaults", vaultHandler.Create)
		r.Get("/vaults/{vaultID}", vaultHandler.Get)
		r.Put("/vaults/{vaultID}/files/{fileID}", fileHandler.Put)

		r.Route("/files/{fileID}", func(r chi.Router) {
			r.Get("/status", fileHandler.Status)
			r.Get("/similar", fileHandler.Similar)
			r.Method(http.MethodPost, "/context", contextHandler)
			r.Post("/authors", authorHandler.Submit)
			r.Get("/authors", authorHandler.Get)
		})

		r.Route("/notes/{noteID}", func(r chi.Router) {
			r.Put("/", noteHandler.Put)
			r.Get("/status", noteHandler.Status)
			r.Get("/similar", noteHandler.Similar)
		})
	})

	return r
}
