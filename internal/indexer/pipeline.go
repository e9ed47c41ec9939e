// Package indexer syncs the essays of configured vaults into storage and
// hands changed essays to the embedding lifecycle.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"morph/internal/contextutil"
	"morph/internal/embedding"
	"morph/internal/storage"
	"morph/internal/vault"
)

// ErrSubmissionFailed is returned when the gate could not hand an essay to
// the inference service.
var ErrSubmissionFailed = errors.New("essay submission failed")

// EssayResetter drops stored chunks of an essay whose content changed.
type EssayResetter interface {
	ResetEssay(ctx context.Context, vaultID, fileID string) (bool, error)
}

// EssaySubmitter submits an essay for chunking and embedding.
type EssaySubmitter interface {
	SubmitEssay(ctx context.Context, file storage.FileRecord) embedding.Submission
}

// FileResult is the outcome of syncing one file.
type FileResult struct {
	FileID     string
	Changed    bool
	Submission embedding.Submission
}

// Stats summarizes one IndexAll run.
type Stats struct {
	Scanned   int `json:"scanned"`
	Changed   int `json:"changed"`
	Submitted int `json:"submitted"`
	Embedded  int `json:"embedded"`
	Failed    int `json:"failed"`
}

// Pipeline reads essays from vault directories, stores them and submits
// the ones that need embeddings.
type Pipeline struct {
	vaultManager *vault.Manager
	fileRepo     storage.FileStore
	resetter     EssayResetter
	submitter    EssaySubmitter
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(vaultManager *vault.Manager, fileRepo storage.FileStore, resetter EssayResetter, submitter EssaySubmitter) *Pipeline {
	return &Pipeline{
		vaultManager: vaultManager,
		fileRepo:     fileRepo,
		resetter:     resetter,
		submitter:    submitter,
	}
}

// IndexFile syncs a single file given by vault id and relative path.
func (p *Pipeline) IndexFile(ctx context.Context, vaultID, relPath string) (FileResult, error) {
	if !filepath.IsLocal(filepath.FromSlash(relPath)) {
		return FileResult{}, fmt.Errorf("path %q is outside the vault", relPath)
	}
	absPath := p.vaultManager.AbsPath(vaultID, relPath)
	if absPath == "" {
		return FileResult{}, fmt.Errorf("failed to resolve absolute path for vault %s, relPath %s", vaultID, relPath)
	}
	return p.indexScanned(ctx, vault.NewScannedFile(vaultID, relPath, absPath))
}

// indexScanned reads a scanned file and syncs it.
func (p *Pipeline) indexScanned(ctx context.Context, f vault.ScannedFile) (FileResult, error) {
	content, err := f.Read()
	if err != nil {
		return FileResult{FileID: f.FileID}, err
	}
	return p.SyncFile(ctx, &storage.FileRecord{
		ID:      f.FileID,
		VaultID: f.VaultID,
		Name:    f.Name,
		Content: content,
	})
}

// SyncFile stores the file content and submits the essay. A content change
// resets previous chunks first so the essay is embedded again; if a task is
// still in flight the file is marked stale instead. Unchanged
// essays still go through the gate, which resubmits failed ones and skips
// those already embedded.
func (p *Pipeline) SyncFile(ctx context.Context, file *storage.FileRecord) (FileResult, error) {
	logger := contextutil.LoggerFromContext(ctx).With("file_id", file.ID)
	result := FileResult{FileID: file.ID}

	changed, err := p.fileRepo.Upsert(ctx, file)
	if err != nil {
		return result, fmt.Errorf("failed to upsert file: %w", err)
	}
	result.Changed = changed

	if changed {
		reset, err := p.resetter.ResetEssay(ctx, file.VaultID, file.ID)
		if err != nil {
			return result, fmt.Errorf("failed to reset essay: %w", err)
		}
		if reset {
			// A fresh submission covers any edit made under an earlier task.
			if _, err := p.fileRepo.TakeStale(ctx, file.ID); err != nil {
				return result, fmt.Errorf("failed to clear stale flag: %w", err)
			}
		} else {
			// The live task embeds the old content; the manager resubmits
			// when it finishes.
			if err := p.fileRepo.MarkStale(ctx, file.ID); err != nil {
				return result, fmt.Errorf("failed to mark essay stale: %w", err)
			}
			logger.DebugContext(ctx, "essay changed while a task is in flight")
		}
		if file, err = p.fileRepo.Get(ctx, file.ID); err != nil {
			return result, fmt.Errorf("failed to reload file: %w", err)
		}
	}

	result.Submission = p.submitter.SubmitEssay(ctx, *file)
	if !result.Submission.OK {
		return result, ErrSubmissionFailed
	}

	logger.DebugContext(ctx, "synced file", "changed", changed, "task_id", result.Submission.TaskID)
	return result, nil
}

// IndexAll scans all vaults and syncs every markdown file.
// Errors for individual files are logged but don't stop the run.
func (p *Pipeline) IndexAll(ctx context.Context) (Stats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	scannedFiles, err := p.vaultManager.ScanAll(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to scan vaults: %w", err)
	}

	logger.InfoContext(ctx, "starting indexing", "total_files", len(scannedFiles))

	var stats Stats
	for _, f := range scannedFiles {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++

		result, err := p.indexScanned(ctx, f)
		if result.Changed {
			stats.Changed++
		}
		if err != nil {
			stats.Failed++
			logger.ErrorContext(ctx, "failed to index file", "rel_path", f.RelPath, "error", err)
			continue
		}
		if result.Submission.TaskID != "" {
			stats.Submitted++
		} else {
			stats.Embedded++
		}
	}

	logger.InfoContext(ctx, "indexing completed",
		"total_files", stats.Scanned,
		"changed", stats.Changed,
		"submitted", stats.Submitted,
		"embedded", stats.Embedded,
		"errors", stats.Failed,
	)

	if stats.Failed > 0 {
		return stats, fmt.Errorf("indexing completed with %d errors", stats.Failed)
	}
	return stats, nil
}
