package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"morph/internal/contextutil"
	"morph/internal/inference"
	"morph/internal/storage"
	"morph/internal/vectorindex"
)

// State is a step of the per-task polling state machine.
type State string

const (
	StatePolling   State = "polling"
	StateResolving State = "resolving"
	StatePersisted State = "persisted"
	StateFailed    State = "failed"
	// StateAbandoned means polling stopped without a local status change.
	StateAbandoned State = "abandoned"
)

// Snapshot is emitted on every transition of a polled task.
type Snapshot struct {
	Job
	State  State
	Status storage.Status
	Polls  int
	Err    error
}

// Terminal reports whether no further snapshot follows for the task.
func (s Snapshot) Terminal() bool {
	return s.State == StatePersisted || s.State == StateFailed || s.State == StateAbandoned
}

// Observer receives snapshots. It is called from the polling goroutine
// and must not block.
type Observer func(Snapshot)

// RetryConfig bounds the retries of a single status check.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	// Default: 500ms
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries.
	// Default: 5s
	MaxBackoff time.Duration

	// Multiplier grows the delay after each retry.
	// Default: 2
	Multiplier float64
}

// DefaultRetryConfig returns the retry configuration for status checks.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *RetryConfig) ApplyDefaults() {
	defaults := DefaultRetryConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.Multiplier <= 0 {
		c.Multiplier = defaults.Multiplier
	}
}

func (c RetryConfig) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialBackoff
	b.MaxInterval = c.MaxBackoff
	b.Multiplier = c.Multiplier
	return b
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Intervals Intervals
	Retry     RetryConfig
	// MaxPolls forces a task to failure after that many in-progress
	// responses. Zero polls until the service reports a terminal status.
	MaxPolls int
}

// Poller drives one task from submission to a terminal local state.
type Poller struct {
	remote   Remote
	stores   Stores
	index    vectorindex.Index
	schema   storage.EmbedSchema
	cfg      PollerConfig
	observer Observer
}

// NewPoller creates a new Poller. index may be nil, in which case results
// are only written to the database. observer may be nil.
func NewPoller(remote Remote, stores Stores, index vectorindex.Index, schema storage.EmbedSchema, cfg PollerConfig, observer Observer) *Poller {
	cfg.Retry.ApplyDefaults()
	if index == nil {
		index = vectorindex.Noop{}
	}
	return &Poller{
		remote:   remote,
		stores:   stores,
		index:    index,
		schema:   schema,
		cfg:      cfg,
		observer: observer,
	}
}

// Run polls job until the task reaches a terminal state or ctx is done.
// Polls for one task never overlap: the next check is scheduled only
// after the previous one has resolved.
func (p *Poller) Run(ctx context.Context, job Job) Snapshot {
	logger := contextutil.LoggerFromContext(ctx).With("task_id", job.TaskID, "kind", job.Kind, "key", job.Key)
	ctx = contextutil.WithLogger(ctx, logger)
	interval := p.cfg.Intervals.forKind(job.Kind)

	for polls := 1; ; polls++ {
		if ctx.Err() != nil {
			return p.abandon(ctx, job, polls-1)
		}

		task, err := p.checkStatus(ctx, job)
		if err != nil {
			if ctx.Err() != nil {
				return p.abandon(ctx, job, polls)
			}
			return p.fail(ctx, job, storage.StatusFailure, fmt.Errorf("status check failed: %w", err), polls)
		}

		status, err := storage.ParseStatus(task.Status)
		if err != nil {
			return p.fail(ctx, job, storage.StatusFailure, fmt.Errorf("%w: %v", inference.ErrMalformedResult, err), polls)
		}

		switch status {
		case storage.StatusSuccess:
			return p.resolve(ctx, job, polls)
		case storage.StatusFailure, storage.StatusCancelled:
			return p.fail(ctx, job, status, fmt.Errorf("task reported %s", status), polls)
		}

		p.emit(Snapshot{Job: job, State: StatePolling, Status: storage.StatusInProgress, Polls: polls})

		if p.cfg.MaxPolls > 0 && polls >= p.cfg.MaxPolls {
			return p.fail(ctx, job, storage.StatusFailure, fmt.Errorf("still in progress after %d polls", polls), polls)
		}

		select {
		case <-ctx.Done():
			return p.abandon(ctx, job, polls)
		case <-time.After(interval):
		}
	}
}

// checkStatus reads the task status, retrying transport and server
// errors. Client errors fail immediately.
func (p *Poller) checkStatus(ctx context.Context, job Job) (*inference.Task, error) {
	logger := contextutil.LoggerFromContext(ctx)

	return backoff.Retry(ctx, func() (*inference.Task, error) {
		task, err := p.remote.Status(ctx, job.Kind.Resource(), job.TaskID)
		if err != nil {
			if inference.IsClientError(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return task, nil
	},
		backoff.WithBackOff(p.cfg.Retry.backOff()),
		backoff.WithMaxTries(uint(p.cfg.Retry.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "status check failed, retrying", "error", err, "retry_in", next)
		}),
	)
}

// resolve fetches and stores the result of a successful task. The fetch
// is attempted once.
func (p *Poller) resolve(ctx context.Context, job Job, polls int) Snapshot {
	p.emit(Snapshot{Job: job, State: StateResolving, Status: storage.StatusSuccess, Polls: polls})

	var err error
	switch job.Kind {
	case KindNote:
		err = p.persistNote(ctx, job)
	case KindEssay:
		err = p.persistEssay(ctx, job)
	case KindAuthor:
		err = p.persistAuthors(ctx, job)
	default:
		err = fmt.Errorf("unknown kind %q", job.Kind)
	}
	if err != nil {
		return p.fail(ctx, job, storage.StatusFailure, err, polls)
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "task result persisted", "polls", polls)
	return p.emit(Snapshot{Job: job, State: StatePersisted, Status: storage.StatusSuccess, Polls: polls})
}

func (p *Poller) persistNote(ctx context.Context, job Job) error {
	logger := contextutil.LoggerFromContext(ctx)

	result, err := p.remote.GetNote(ctx, job.TaskID)
	if err != nil {
		return fmt.Errorf("failed to fetch note result: %w", err)
	}
	if result.NoteID != "" && result.NoteID != job.Key {
		return fmt.Errorf("result is for note %s: %w", result.NoteID, inference.ErrMalformedResult)
	}
	if err := p.checkDimensions(len(result.Embedding)); err != nil {
		return err
	}
	if result.Usage != nil {
		logger.DebugContext(ctx, "note embedding usage",
			"prompt_tokens", result.Usage.PromptTokens, "total_tokens", result.Usage.TotalTokens)
	}

	rec := storage.NoteEmbeddingRecord{NoteID: job.Key, Embedding: result.Embedding}
	if err := p.stores.Results.SaveNoteResult(ctx, job.TaskID, rec); err != nil {
		return fmt.Errorf("failed to save note embedding: %w", err)
	}

	vaultID := job.VaultID
	if vaultID == "" {
		vaultID = result.VaultID
	}
	point := vectorindex.Point{
		ID:   job.Key,
		Vec:  result.Embedding,
		Meta: map[string]any{"vault_id": vaultID, "file_id": result.FileID},
	}
	if err := p.index.Upsert(ctx, vectorindex.NoteCollection(p.schema).Name, []vectorindex.Point{point}); err != nil {
		logger.WarnContext(ctx, "failed to index note embedding", "error", err)
	}
	return nil
}

func (p *Poller) persistEssay(ctx context.Context, job Job) error {
	logger := contextutil.LoggerFromContext(ctx)

	result, err := p.remote.GetEssay(ctx, job.TaskID)
	if err != nil {
		return fmt.Errorf("failed to fetch essay result: %w", err)
	}

	vaultID := job.VaultID
	if vaultID == "" {
		vaultID = result.VaultID
	}

	chunks := make([]storage.ChunkEmbeddingRecord, 0, len(result.Nodes))
	for _, node := range result.Nodes {
		if err := p.checkDimensions(len(node.Embedding)); err != nil {
			return err
		}
		chunks = append(chunks, storage.ChunkEmbeddingRecord{
			VaultID:           vaultID,
			FileID:            job.Key,
			NodeID:            node.NodeID,
			Embedding:         node.Embedding,
			StartLine:         node.Metadata.StartLine,
			EndLine:           node.Metadata.EndLine,
			LineNumbers:       node.Metadata.LineNumbers,
			LineMap:           node.Metadata.LineMap,
			DocumentTitle:     node.Metadata.DocumentTitle,
			MetadataSeparator: node.MetadataSeparator,
		})
	}

	previous, err := p.stores.Chunks.ListByFile(ctx, vaultID, job.Key)
	if err != nil {
		logger.WarnContext(ctx, "failed to list previous chunks", "error", err)
	}

	if err := p.stores.Results.SaveEssayResult(ctx, job.TaskID, vaultID, job.Key, chunks); err != nil {
		return fmt.Errorf("failed to save essay embeddings: %w", err)
	}

	p.mirrorChunks(ctx, vaultID, job.Key, previous, chunks)
	return nil
}

// mirrorChunks replaces the indexed chunks of a file. Index errors are
// logged and never fail the task.
func (p *Poller) mirrorChunks(ctx context.Context, vaultID, fileID string, previous, current []storage.ChunkEmbeddingRecord) {
	logger := contextutil.LoggerFromContext(ctx)
	collection := vectorindex.EssayCollection(p.schema).Name

	keep := make(map[string]bool, len(current))
	points := make([]vectorindex.Point, 0, len(current))
	for _, c := range current {
		id := vectorindex.ChunkPointID(vaultID, fileID, c.NodeID)
		keep[id] = true
		points = append(points, vectorindex.Point{
			ID:  id,
			Vec: c.Embedding,
			Meta: map[string]any{
				"vault_id":   vaultID,
				"file_id":    fileID,
				"node_id":    c.NodeID,
				"start_line": c.StartLine,
				"end_line":   c.EndLine,
			},
		})
	}

	var stale []string
	for _, c := range previous {
		if id := vectorindex.ChunkPointID(vaultID, fileID, c.NodeID); !keep[id] {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		if err := p.index.Delete(ctx, collection, stale); err != nil {
			logger.WarnContext(ctx, "failed to remove stale chunks from index", "error", err)
		}
	}
	if err := p.index.Upsert(ctx, collection, points); err != nil {
		logger.WarnContext(ctx, "failed to index essay chunks", "error", err)
	}
}

func (p *Poller) persistAuthors(ctx context.Context, job Job) error {
	result, err := p.remote.GetAuthors(ctx, job.TaskID)
	if err != nil {
		return fmt.Errorf("failed to fetch author result: %w", err)
	}
	if err := p.stores.Results.SaveAuthorResult(ctx, job.TaskID, job.Key, result.Authors, result.Queries); err != nil {
		return fmt.Errorf("failed to save authors: %w", err)
	}
	return nil
}

func (p *Poller) checkDimensions(n int) error {
	if p.schema.Dimensions > 0 && n != p.schema.Dimensions {
		return fmt.Errorf("embedding has %d dimensions, want %d: %w", n, p.schema.Dimensions, inference.ErrMalformedResult)
	}
	return nil
}

// fail moves the entity and task to status. The entity is left alone if it
// has since moved on to a different task.
func (p *Poller) fail(ctx context.Context, job Job, status storage.Status, cause error, polls int) Snapshot {
	logger := contextutil.LoggerFromContext(ctx)
	logger.WarnContext(ctx, "task failed", "status", status, "error", cause)

	store := p.stores.tracking(job.Kind)
	tr, err := store.Tracking(ctx, job.Key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err == nil && tr.TaskID != "" && tr.TaskID != job.TaskID:
		logger.InfoContext(ctx, "entity moved to another task, leaving status", "current_task_id", tr.TaskID)
	default:
		if err != nil {
			logger.ErrorContext(ctx, "failed to read entity status", "error", err)
		}
		if err := store.SetStatus(ctx, job.Key, status); err != nil {
			logger.ErrorContext(ctx, "failed to mark entity", "status", status, "error", err)
		}
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := p.stores.Tasks.Complete(ctx, job.TaskID, status, msg); err != nil {
		logger.ErrorContext(ctx, "failed to complete task", "error", err)
	}

	return p.emit(Snapshot{Job: job, State: StateFailed, Status: status, Polls: polls, Err: cause})
}

func (p *Poller) abandon(ctx context.Context, job Job, polls int) Snapshot {
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "polling abandoned", "polls", polls)
	return p.emit(Snapshot{Job: job, State: StateAbandoned, Status: storage.StatusInProgress, Polls: polls, Err: ctx.Err()})
}

func (p *Poller) emit(s Snapshot) Snapshot {
	if p.observer != nil {
		p.observer(s)
	}
	return s
}
