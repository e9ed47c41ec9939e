package storage

import (
	"fmt"
	"time"
)

// Status is the lifecycle state shared by tasks and by every entity that
// owns a remote task.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusFailure    Status = "failure"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus converts a wire status into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusInProgress, StatusSuccess, StatusFailure, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusCancelled
}

// Tracking is the status and current task of an entity.
// TaskID is empty when the column is NULL.
type Tracking struct {
	Status Status
	TaskID string
}

// Live reports whether the entity is waiting on a task it still references.
func (t Tracking) Live() bool {
	return t.Status == StatusInProgress && t.TaskID != ""
}

// VaultRecord is a root directory of markdown files.
type VaultRecord struct {
	ID        string
	Name      string
	RootPath  string
	CreatedAt time.Time
}

// FileRecord is an essay. One task covers all chunks of the file.
type FileRecord struct {
	ID              string
	VaultID         string
	Name            string
	Extension       string
	Content         string
	EmbeddingStatus Status
	EmbeddingTaskID string
	UpdatedAt       time.Time
}

// NoteRecord is a short note attached to a file.
type NoteRecord struct {
	ID              string
	VaultID         string
	FileID          string
	Content         string
	Color           string
	Dropped         bool
	EmbeddingStatus Status
	EmbeddingTaskID string
	CreatedAt       time.Time
	AccessedAt      time.Time
}

// TaskRecord is the local copy of a remote async job.
type TaskRecord struct {
	ID          string
	Status      Status
	CreatedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// AuthorRecord holds author recommendations for a file.
type AuthorRecord struct {
	FileID             string
	RecommendedAuthors []string
	Queries            []string
	Status             Status
	TaskID             string
	CreatedAt          time.Time
}

// NoteEmbeddingRecord is the vector for a single note.
type NoteEmbeddingRecord struct {
	NoteID    string
	Embedding []float32
	CreatedAt time.Time
}

// ChunkEmbeddingRecord is the vector for one chunk of an essay with its
// position in the source document.
type ChunkEmbeddingRecord struct {
	VaultID           string
	FileID            string
	NodeID            string
	Embedding         []float32
	StartLine         int
	EndLine           int
	LineNumbers       []int
	LineMap           map[string]string
	DocumentTitle     string
	MetadataSeparator string
	CreatedAt         time.Time
}
