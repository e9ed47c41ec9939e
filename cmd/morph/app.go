package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"morph/internal/config"
	"morph/internal/embedding"
	"morph/internal/handlers"
	"morph/internal/indexer"
	"morph/internal/inference"
	"morph/internal/retrieval"
	"morph/internal/storage"
	"morph/internal/vault"
	"morph/internal/vectorindex"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg    *config.Config
	db     *sql.DB
	client *inference.Client
	schema storage.EmbedSchema
	index  vectorindex.Index

	vaults  *storage.VaultRepo
	files   *storage.FileRepo
	notes   *storage.NoteRepo
	authors *storage.AuthorRepo
	results *storage.ResultRepo

	resetter *embedding.Resetter
	manager  *embedding.Manager
	pipeline *indexer.Pipeline
	engine   *retrieval.Engine
	searcher *retrieval.Searcher

	closeIndex func() error
}

// fetchSchema reads the embedding space from the inference service.
func fetchSchema(ctx context.Context, client *inference.Client) (storage.EmbedSchema, error) {
	meta, err := client.Metadata(ctx)
	if err != nil {
		return storage.EmbedSchema{}, fmt.Errorf("failed to fetch inference metadata: %w", err)
	}
	schema := storage.EmbedSchema{
		ModelID:        meta.Embed.ModelID,
		EmbedType:      meta.Embed.EmbedType,
		Dimensions:     meta.Embed.Dimensions,
		M:              meta.Embed.M,
		EfConstruction: meta.Embed.EfConstruction,
	}
	if err := schema.Validate(); err != nil {
		return storage.EmbedSchema{}, fmt.Errorf("invalid embedding metadata: %w", err)
	}
	return schema, nil
}

func newVectorIndex(cfg *config.Config) (vectorindex.Index, func() error, error) {
	switch cfg.VectorIndex {
	case config.VectorIndexQdrant:
		idx, err := vectorindex.NewQdrant(cfg.QdrantURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Qdrant client: %w", err)
		}
		return idx, idx.Close, nil
	case config.VectorIndexNone:
		return vectorindex.Noop{}, func() error { return nil }, nil
	default:
		idx, err := vectorindex.NewSQLiteVec(cfg.VecDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open vector index: %w", err)
		}
		return idx, idx.Close, nil
	}
}

// newApp opens storage, reads the embedding schema and wires the
// lifecycle. Close releases everything newApp opened.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, closeIndex: func() error { return nil }}

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	if err := storage.Migrate(db); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("database initialized", "path", cfg.DBPath)

	a.client = inference.NewClient(cfg.InferenceBaseURL, cfg.InferenceAPIKey)
	if a.schema, err = fetchSchema(ctx, a.client); err != nil {
		a.Close()
		return nil, err
	}
	if err := storage.MigrateEmbeddings(db, a.schema); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create embedding tables: %w", err)
	}
	logger.Info("embedding schema ready",
		"model", a.schema.ModelID,
		"dimensions", a.schema.Dimensions,
		"index_version", indexer.IndexVersion(a.schema),
	)

	if a.index, a.closeIndex, err = newVectorIndex(cfg); err != nil {
		a.Close()
		return nil, err
	}
	for _, c := range []vectorindex.Collection{vectorindex.NoteCollection(a.schema), vectorindex.EssayCollection(a.schema)} {
		if err := a.index.Ensure(ctx, c); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to ensure collection %s: %w", c.Name, err)
		}
	}
	logger.Info("vector index ready", "backend", cfg.VectorIndex)

	a.vaults = storage.NewVaultRepo(db)
	a.files = storage.NewFileRepo(db)
	a.notes = storage.NewNoteRepo(db)
	a.authors = storage.NewAuthorRepo(db)
	a.results = storage.NewResultRepo(db, a.schema)
	noteEmbeddings := storage.NewNoteEmbeddingRepo(db, a.schema)
	chunks := storage.NewChunkEmbeddingRepo(db, a.schema)

	stores := embedding.Stores{
		Tasks:          storage.NewTaskRepo(db),
		Files:          a.files,
		Notes:          a.notes,
		Authors:        a.authors,
		NoteEmbeddings: noteEmbeddings,
		Chunks:         chunks,
		Results:        a.results,
	}
	poller := embedding.NewPoller(a.client, stores, a.index, a.schema, embedding.PollerConfig{
		Intervals: embedding.Intervals{
			Note:   cfg.NotePollInterval,
			Essay:  cfg.EssayPollInterval,
			Author: cfg.AuthorPollInterval,
		},
		Retry:    embedding.DefaultRetryConfig(),
		MaxPolls: cfg.MaxPolls,
	}, nil)
	a.resetter = embedding.NewResetter(a.results, chunks, a.index, a.schema)
	a.manager = embedding.NewManager(
		embedding.NewGate(a.client, stores),
		poller,
		embedding.NewRegistry(),
		embedding.NewIndicator(embedding.DefaultFade),
		a.resetter,
		stores,
		logger,
	)

	vaultManager, err := vault.NewManager(ctx, a.vaults, cfg.VaultPaths...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize vault manager: %w", err)
	}
	logger.Info("vault manager initialized", "vaults", len(vaultManager.Vaults()))

	a.pipeline = indexer.NewPipeline(vaultManager, a.files, a.resetter, a.manager)
	a.engine = retrieval.NewEngine(a.notes, noteEmbeddings, chunks, retrieval.DefaultRetryConfig())
	a.searcher = retrieval.NewSearcher(a.index, a.schema, noteEmbeddings, chunks)
	return a, nil
}

// checks are the dependencies reported by the health endpoint. Only the
// database is critical: without the service the stored context is still
// served.
func (a *app) checks() []handlers.Check {
	return []handlers.Check{
		{Name: "database", Critical: true, Run: a.db.PingContext},
		{Name: "inference", Run: func(ctx context.Context) error {
			_, err := a.client.Metadata(ctx)
			return err
		}},
	}
}

// Close stops the pollers and closes storage. Tasks still in flight keep
// their status and are resumed on the next start.
func (a *app) Close() {
	if a.manager != nil {
		a.manager.Close()
	}
	var errs []error
	if a.closeIndex != nil {
		errs = append(errs, a.closeIndex())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
}
