// Command morph tracks embedding tasks for notes and essays and serves
// their context over a local JSON API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"morph/internal/config"
	"morph/internal/contextutil"
	"morph/internal/http"
	"morph/internal/indexer"
	"morph/internal/inference"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:           "morph",
		Short:         "Embedding lifecycle and context retrieval for markdown vaults",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			setupLogging(cfg)
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the API server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "index",
			Short: "Index the configured vaults and wait for their tasks",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runIndex(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "metadata",
			Short: "Print the embedding metadata of the inference service",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMetadata(cmd.Context(), cmd, cfg)
			},
		},
	)
	return cmd
}

func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	return contextutil.WithLogger(ctx, slog.Default()), cancel
}

func runServe(parent context.Context, cfg *config.Config) error {
	ctx, stop := signalContext(parent)
	defer stop()
	logger := slog.Default()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.manager.ProcessPending(ctx); err != nil {
		logger.Error("failed to process pending tasks", "error", err)
	}

	router := http.NewRouter(&http.Deps{
		BaseCtx:      ctx,
		Schema:       a.schema,
		Checks:       a.checks(),
		Vaults:       a.vaults,
		Files:        a.files,
		Notes:        a.notes,
		Authors:      a.authors,
		Pipeline:     a.pipeline,
		NoteResetter: a.resetter,
		Submitter:    a.manager,
		Searcher:     a.searcher,
		Finder:       a.engine,
		Monitor:      a.manager,
	})

	if len(cfg.VaultPaths) > 0 {
		go func() {
			logger.Info("starting background indexing of vaults")
			stats, err := a.pipeline.IndexAll(ctx)
			if err != nil {
				logger.Error("indexing completed with errors", "error", err)
				return
			}
			logger.Info("indexing completed", "scanned", stats.Scanned, "submitted", stats.Submitted)
		}()
	}

	srv := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	return nil
}

func runIndex(parent context.Context, cfg *config.Config) error {
	ctx, stop := signalContext(parent)
	defer stop()
	logger := slog.Default()

	if len(cfg.VaultPaths) == 0 {
		return errors.New("no vaults configured: set VAULT_PATH")
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, indexErr := a.pipeline.IndexAll(ctx)
	logger.Info("files synced",
		"scanned", stats.Scanned,
		"changed", stats.Changed,
		"submitted", stats.Submitted,
		"embedded", stats.Embedded,
		"failed", stats.Failed,
	)

	logger.Info("waiting for embedding tasks", "pending", len(a.manager.Pending()))
	done := make(chan struct{})
	go func() {
		a.manager.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("embedding tasks finished", "indicator", a.manager.Indicator())
	case <-ctx.Done():
		logger.Info("interrupted, unfinished tasks resume on next start", "pending", len(a.manager.Pending()))
	}
	return indexErr
}

func runMetadata(parent context.Context, cmd *cobra.Command, cfg *config.Config) error {
	ctx, stop := signalContext(parent)
	defer stop()

	client := inference.NewClient(cfg.InferenceBaseURL, cfg.InferenceAPIKey)
	schema, err := fetchSchema(ctx, client)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"model_id":        schema.ModelID,
		"embed_type":      schema.EmbedType,
		"dimensions":      schema.Dimensions,
		"note_table":      schema.NoteTable(),
		"essay_table":     schema.EssayTable(),
		"index_version":   indexer.IndexVersion(schema),
		"m":               schema.M,
		"ef_construction": schema.EfConstruction,
	})
}
