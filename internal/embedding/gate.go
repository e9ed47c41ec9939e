package embedding

import (
	"context"
	"errors"

	"morph/internal/contextutil"
	"morph/internal/inference"
	"morph/internal/markdown"
	"morph/internal/storage"
)

// supersededMessage is recorded on a task that lost the claim race to a
// concurrent submission for the same entity.
const supersededMessage = "superseded by concurrent submission"

// Submission is the outcome of a submit call. OK means the entity is now
// tracked, either already embedded or waiting on a task. TaskID is set
// only when that task still needs polling.
type Submission struct {
	Kind    Kind
	Key     string
	VaultID string
	TaskID  string
	OK      bool
}

// Job returns the polling job for the submission.
func (s Submission) Job() Job {
	return Job{TaskID: s.TaskID, Kind: s.Kind, Key: s.Key, VaultID: s.VaultID}
}

// Gate decides whether an entity needs a new remote task and records the
// task it submits. It never starts polling itself.
type Gate struct {
	remote Remote
	stores Stores
}

// NewGate creates a new Gate.
func NewGate(remote Remote, stores Stores) *Gate {
	return &Gate{remote: remote, stores: stores}
}

// request describes one submission in kind-independent terms.
type request struct {
	kind    Kind
	key     string
	vaultID string
	// done reports whether a result is already stored.
	done func(ctx context.Context, tr storage.Tracking) (bool, error)
	// submit sends the remote request.
	submit func(ctx context.Context) (*inference.Task, error)
	// optional entities have no row until their first claim.
	optional bool
}

// SubmitNote submits a note for embedding unless it is already embedded
// or waiting on a live task.
func (g *Gate) SubmitNote(ctx context.Context, note storage.NoteRecord) Submission {
	return g.submit(ctx, request{
		kind:    KindNote,
		key:     note.ID,
		vaultID: note.VaultID,
		done: func(ctx context.Context, _ storage.Tracking) (bool, error) {
			return g.stores.NoteEmbeddings.Exists(ctx, note.ID)
		},
		submit: func(ctx context.Context) (*inference.Task, error) {
			return g.remote.SubmitNote(ctx, inference.NoteRequest{
				VaultID: note.VaultID,
				FileID:  note.FileID,
				NoteID:  note.ID,
				Content: note.Content,
			})
		},
	})
}

// SubmitNotes submits notes one at a time. Requests are never sent in
// parallel so a large batch cannot flood the inference service.
func (g *Gate) SubmitNotes(ctx context.Context, notes []storage.NoteRecord) []Submission {
	out := make([]Submission, 0, len(notes))
	for _, note := range notes {
		if ctx.Err() != nil {
			break
		}
		out = append(out, g.SubmitNote(ctx, note))
	}
	return out
}

// SubmitEssay submits a file for chunking and embedding. A file counts as
// embedded when its status is success or any of its chunks is stored.
// Frontmatter is removed before submission.
func (g *Gate) SubmitEssay(ctx context.Context, file storage.FileRecord) Submission {
	return g.submit(ctx, request{
		kind:    KindEssay,
		key:     file.ID,
		vaultID: file.VaultID,
		done: func(ctx context.Context, tr storage.Tracking) (bool, error) {
			if tr.Status == storage.StatusSuccess {
				return true, nil
			}
			return g.stores.Chunks.ExistsForFile(ctx, file.VaultID, file.ID)
		},
		submit: func(ctx context.Context) (*inference.Task, error) {
			return g.remote.SubmitEssay(ctx, inference.EssayRequest{
				VaultID: file.VaultID,
				FileID:  file.ID,
				Content: markdown.StripFrontmatter(file.Content),
			})
		},
	})
}

// SubmitAuthors submits an author recommendation request for a file.
// Only a successful earlier request counts as done.
func (g *Gate) SubmitAuthors(ctx context.Context, fileID string, req inference.AuthorRequest) Submission {
	req.Essay = markdown.StripFrontmatter(req.Essay)
	return g.submit(ctx, request{
		kind:     KindAuthor,
		key:      fileID,
		optional: true,
		done: func(_ context.Context, tr storage.Tracking) (bool, error) {
			return tr.Status == storage.StatusSuccess, nil
		},
		submit: func(ctx context.Context) (*inference.Task, error) {
			return g.remote.SubmitAuthors(ctx, req)
		},
	})
}

func (g *Gate) submit(ctx context.Context, req request) Submission {
	logger := contextutil.LoggerFromContext(ctx).With("kind", req.kind, "key", req.key)
	out := Submission{Kind: req.kind, Key: req.key, VaultID: req.vaultID}
	store := g.stores.tracking(req.kind)

	tr, err := store.Tracking(ctx, req.key)
	if err != nil && !(req.optional && errors.Is(err, storage.ErrNotFound)) {
		logger.ErrorContext(ctx, "failed to read embedding status", "error", err)
		return out
	}

	done, err := req.done(ctx, tr)
	if err != nil {
		logger.ErrorContext(ctx, "failed to check for existing result", "error", err)
		return out
	}
	if done {
		if tr.Status != storage.StatusSuccess {
			if err := store.SetStatus(ctx, req.key, storage.StatusSuccess); err != nil {
				logger.WarnContext(ctx, "failed to repair status", "error", err)
			}
		}
		out.OK = true
		return out
	}

	if tr.Live() {
		logger.DebugContext(ctx, "task already in flight", "task_id", tr.TaskID)
		out.OK = true
		out.TaskID = tr.TaskID
		return out
	}

	task, err := req.submit(ctx)
	if err != nil {
		logger.WarnContext(ctx, "submission failed", "error", err)
		g.markFailed(ctx, store, req.key)
		return out
	}
	logger = logger.With("task_id", task.TaskID)

	if err := g.stores.Tasks.EnsureExists(ctx, task.TaskID, storage.StatusInProgress, task.Created()); err != nil {
		logger.ErrorContext(ctx, "failed to record task", "error", err)
		g.markFailed(ctx, store, req.key)
		return out
	}

	won, claimErr := store.Claim(ctx, req.key, task.TaskID)
	if claimErr != nil {
		logger.ErrorContext(ctx, "failed to claim entity", "error", claimErr)
		if err := g.stores.Tasks.Complete(ctx, task.TaskID, storage.StatusFailure, claimErr.Error()); err != nil {
			logger.WarnContext(ctx, "failed to complete orphaned task", "error", err)
		}
		g.markFailed(ctx, store, req.key)
		return out
	}

	if !won {
		// Another caller claimed the entity between the status read and
		// the claim. Its task is the one to poll.
		logger.InfoContext(ctx, "lost claim to concurrent submission")
		if err := g.stores.Tasks.Complete(ctx, task.TaskID, storage.StatusCancelled, supersededMessage); err != nil {
			logger.WarnContext(ctx, "failed to cancel superseded task", "error", err)
		}
		out.OK = true
		if current, err := store.Tracking(ctx, req.key); err == nil && current.Live() {
			out.TaskID = current.TaskID
		}
		return out
	}

	logger.InfoContext(ctx, "task submitted")
	out.OK = true
	out.TaskID = task.TaskID
	return out
}

func (g *Gate) markFailed(ctx context.Context, store storage.TrackingStore, key string) {
	if err := store.SetStatus(ctx, key, storage.StatusFailure); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to mark entity failed", "key", key, "error", err)
	}
}
