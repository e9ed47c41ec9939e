// Package embedding manages the lifecycle of remote embedding and author
// recommendation tasks: submission, polling and result persistence.
package embedding

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_remote.go -package=mocks morph/internal/embedding Remote

import (
	"context"
	"time"

	"morph/internal/inference"
	"morph/internal/storage"
)

// Kind identifies the entity a task belongs to.
type Kind string

const (
	KindNote   Kind = "note"
	KindEssay  Kind = "essay"
	KindAuthor Kind = "author"
)

// Resource returns the service endpoint prefix for the kind.
func (k Kind) Resource() inference.Resource {
	switch k {
	case KindEssay:
		return inference.ResourceEssays
	case KindAuthor:
		return inference.ResourceAuthors
	default:
		return inference.ResourceNotes
	}
}

// Remote is the part of the inference service used by the gate and poller.
type Remote interface {
	SubmitNote(ctx context.Context, req inference.NoteRequest) (*inference.Task, error)
	SubmitEssay(ctx context.Context, req inference.EssayRequest) (*inference.Task, error)
	SubmitAuthors(ctx context.Context, req inference.AuthorRequest) (*inference.Task, error)
	Status(ctx context.Context, resource inference.Resource, taskID string) (*inference.Task, error)
	GetNote(ctx context.Context, taskID string) (*inference.NoteResult, error)
	GetEssay(ctx context.Context, taskID string) (*inference.EssayResult, error)
	GetAuthors(ctx context.Context, taskID string) (*inference.AuthorResult, error)
}

// Stores groups the storage dependencies of the lifecycle.
type Stores struct {
	Tasks          storage.TaskStore
	Files          storage.FileStore
	Notes          storage.NoteStore
	Authors        storage.AuthorStore
	NoteEmbeddings storage.NoteEmbeddingStore
	Chunks         storage.ChunkEmbeddingStore
	Results        storage.ResultWriter
}

// tracking returns the tracking store for kind.
func (s Stores) tracking(kind Kind) storage.TrackingStore {
	switch kind {
	case KindEssay:
		return s.Files
	case KindAuthor:
		return s.Authors
	default:
		return s.Notes
	}
}

// Job identifies one task being polled. Key is the note id for notes and
// the file id for essays and authors.
type Job struct {
	TaskID  string
	Kind    Kind
	Key     string
	VaultID string
}

// Intervals are the delays between status checks per kind.
type Intervals struct {
	Note   time.Duration
	Essay  time.Duration
	Author time.Duration
}

// DefaultIntervals returns the poll intervals used when none are configured.
// Essays are chunked before embedding and take longer than notes.
func DefaultIntervals() Intervals {
	return Intervals{
		Note:   3 * time.Second,
		Essay:  12 * time.Second,
		Author: 3 * time.Second,
	}
}

func (i Intervals) forKind(k Kind) time.Duration {
	defaults := DefaultIntervals()
	switch k {
	case KindEssay:
		if i.Essay > 0 {
			return i.Essay
		}
		return defaults.Essay
	case KindAuthor:
		if i.Author > 0 {
			return i.Author
		}
		return defaults.Author
	default:
		if i.Note > 0 {
			return i.Note
		}
		return defaults.Note
	}
}
