package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"morph/internal/contextutil"
	"morph/internal/inference"
	"morph/internal/storage"
)

// Limits on how much pending work ProcessPending picks up at startup.
const (
	pendingNoteLimit     = 5
	pendingFileLimit     = 3
	unsubmittedNoteLimit = 5
)

// Manager wires the gate, registry and poller together. Submissions are
// fire and forget: a successful submit starts a poller in the background
// unless one is already running for the task.
type Manager struct {
	gate      *Gate
	poller    *Poller
	registry  *Registry
	indicator *Indicator
	resetter  *Resetter
	stores    Stores
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager. Pollers it starts live until Close. The
// resetter drops old chunks before an essay edited during its task is
// resubmitted.
func NewManager(gate *Gate, poller *Poller, registry *Registry, indicator *Indicator, resetter *Resetter, stores Stores, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		gate:      gate,
		poller:    poller,
		registry:  registry,
		indicator: indicator,
		resetter:  resetter,
		stores:    stores,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SubmitNote submits a note and starts polling its task.
func (m *Manager) SubmitNote(ctx context.Context, note storage.NoteRecord) Submission {
	s := m.gate.SubmitNote(ctx, note)
	m.track(s)
	return s
}

// SubmitNotes submits notes sequentially and starts polling their tasks.
func (m *Manager) SubmitNotes(ctx context.Context, notes []storage.NoteRecord) []Submission {
	subs := m.gate.SubmitNotes(ctx, notes)
	for _, s := range subs {
		m.track(s)
	}
	return subs
}

// SubmitEssay submits a file and starts polling its task.
func (m *Manager) SubmitEssay(ctx context.Context, file storage.FileRecord) Submission {
	s := m.gate.SubmitEssay(ctx, file)
	m.track(s)
	return s
}

// SubmitAuthors submits an author request and starts polling its task.
func (m *Manager) SubmitAuthors(ctx context.Context, fileID string, req inference.AuthorRequest) Submission {
	s := m.gate.SubmitAuthors(ctx, fileID, req)
	m.track(s)
	return s
}

func (m *Manager) track(s Submission) {
	if s.OK && s.TaskID != "" {
		m.Track(s.Job())
	}
}

// Track starts a poller for job unless its task is already being polled.
// Reports whether a poller was started.
func (m *Manager) Track(job Job) bool {
	if job.TaskID == "" || !m.registry.Add(job.TaskID) {
		return false
	}
	m.indicator.Started()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.registry.Remove(job.TaskID)

		ctx := contextutil.WithLogger(m.ctx, m.logger)
		snap := m.poller.Run(ctx, job)
		m.indicator.Finished(snap)
		if job.Kind == KindEssay {
			m.resubmitStale(ctx, job, snap)
		}
	}()
	return true
}

// resubmitStale embeds an essay again when its content changed while job
// was running. A failed job clears the flag; the next sync resubmits it.
func (m *Manager) resubmitStale(ctx context.Context, job Job, snap Snapshot) {
	if ctx.Err() != nil || (snap.State != StatePersisted && snap.State != StateFailed) {
		return
	}
	logger := contextutil.LoggerFromContext(ctx).With("file_id", job.Key)

	stale, err := m.stores.Files.TakeStale(ctx, job.Key)
	if err != nil {
		logger.WarnContext(ctx, "failed to read stale flag", "error", err)
		return
	}
	if !stale || snap.State != StatePersisted || m.resetter == nil {
		return
	}

	file, err := m.stores.Files.Get(ctx, job.Key)
	if err != nil {
		logger.WarnContext(ctx, "failed to load stale essay", "error", err)
		return
	}
	if _, err := m.resetter.ResetEssay(ctx, file.VaultID, file.ID); err != nil {
		logger.WarnContext(ctx, "failed to reset stale essay", "error", err)
		return
	}
	if file, err = m.stores.Files.Get(ctx, job.Key); err != nil {
		logger.WarnContext(ctx, "failed to reload stale essay", "error", err)
		return
	}
	s := m.SubmitEssay(ctx, *file)
	logger.InfoContext(ctx, "resubmitted essay edited during its task", "ok", s.OK, "task_id", s.TaskID)
}

// ProcessPending resumes polling for tasks left in flight by a previous
// run and submits notes that were never sent.
func (m *Manager) ProcessPending(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	notes, err := m.stores.Notes.ListInProgress(ctx, pendingNoteLimit)
	if err != nil {
		return fmt.Errorf("failed to list pending notes: %w", err)
	}
	files, err := m.stores.Files.ListInProgress(ctx, pendingFileLimit)
	if err != nil {
		return fmt.Errorf("failed to list pending files: %w", err)
	}
	unsubmitted, err := m.stores.Notes.ListUnsubmitted(ctx, unsubmittedNoteLimit)
	if err != nil {
		return fmt.Errorf("failed to list unsubmitted notes: %w", err)
	}

	resumed := 0
	for _, n := range notes {
		if m.Track(Job{TaskID: n.EmbeddingTaskID, Kind: KindNote, Key: n.ID, VaultID: n.VaultID}) {
			resumed++
		}
	}
	for _, f := range files {
		if m.Track(Job{TaskID: f.EmbeddingTaskID, Kind: KindEssay, Key: f.ID, VaultID: f.VaultID}) {
			resumed++
		}
	}

	submitted := m.SubmitNotes(ctx, unsubmitted)
	logger.InfoContext(ctx, "processed pending tasks", "resumed", resumed, "submitted", len(submitted))
	return nil
}

// Pending returns the ids of tasks being polled.
func (m *Manager) Pending() []string {
	return m.registry.IDs()
}

// Indicator returns the aggregate status.
func (m *Manager) Indicator() IndicatorState {
	return m.indicator.State()
}

// Wait blocks until every running poller has stopped.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close stops all pollers and waits for them to return. Their tasks keep
// their in-progress status and are picked up by the next ProcessPending.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
