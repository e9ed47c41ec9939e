package inference

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Resource is the path prefix shared by the submit, status and get
// endpoints of one job type.
type Resource string

const (
	ResourceNotes   Resource = "notes"
	ResourceEssays  Resource = "essays"
	ResourceAuthors Resource = "authors"
)

// Task is the envelope returned by every submit and status endpoint.
type Task struct {
	TaskID     string  `json:"task_id"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	ExecutedAt *string `json:"executed_at"`
}

// Created parses CreatedAt, returning the zero time when it is unusable.
func (t Task) Created() time.Time {
	return ParseTimestamp(t.CreatedAt)
}

// Executed parses ExecutedAt. The zero time means the task has not run.
func (t Task) Executed() time.Time {
	if t.ExecutedAt == nil {
		return time.Time{}
	}
	return ParseTimestamp(*t.ExecutedAt)
}

// NoteRequest is the payload of POST /notes/submit.
type NoteRequest struct {
	VaultID string `json:"vault_id"`
	FileID  string `json:"file_id"`
	NoteID  string `json:"note_id"`
	Content string `json:"content"`
}

// Usage reports token accounting for an embedding call.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// NoteResult is the payload of GET /notes/get.
type NoteResult struct {
	VaultID   string    `json:"vault_id"`
	FileID    string    `json:"file_id"`
	NoteID    string    `json:"note_id"`
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
	Usage     *Usage    `json:"usage,omitempty"`
}

// EssayRequest is the payload of POST /essays/submit.
type EssayRequest struct {
	VaultID string `json:"vault_id"`
	FileID  string `json:"file_id"`
	Content string `json:"content"`
}

// LineMap maps rendered line numbers to source line numbers. The service
// has sent both string and numeric values, so both are accepted.
type LineMap map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (m *LineMap) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(LineMap, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case nil:
			out[k] = ""
		default:
			return fmt.Errorf("line_map[%s]: unexpected type %T", k, v)
		}
	}
	*m = out
	return nil
}

// NodeMetadata positions a chunk in its source document.
type NodeMetadata struct {
	LineNumbers   []int   `json:"line_numbers"`
	StartLine     int     `json:"start_line"`
	EndLine       int     `json:"end_line"`
	LineMap       LineMap `json:"line_map"`
	DocumentTitle string  `json:"document_title"`
}

// Node is one embedded chunk of an essay.
type Node struct {
	Embedding         []float32       `json:"embedding"`
	NodeID            string          `json:"node_id"`
	Metadata          NodeMetadata    `json:"metadata"`
	Relationships     json.RawMessage `json:"relationships,omitempty"`
	MetadataSeparator string          `json:"metadata_separator"`
}

// EssayResult is the payload of GET /essays/get.
type EssayResult struct {
	VaultID string `json:"vault_id"`
	FileID  string `json:"file_id"`
	Nodes   []Node `json:"nodes"`
	Error   string `json:"error,omitempty"`
}

// AuthorRequest is the payload of POST /authors/submit.
type AuthorRequest struct {
	Essay            string  `json:"essay"`
	NumAuthors       int     `json:"num_authors"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	SearchBackend    string  `json:"search_backend"`
	NumSearchResults int     `json:"num_search_results"`
}

// DefaultAuthorRequest returns the request parameters used when the caller
// does not override them.
func DefaultAuthorRequest(essay string) AuthorRequest {
	return AuthorRequest{
		Essay:            essay,
		NumAuthors:       8,
		Temperature:      0.7,
		MaxTokens:        16384,
		SearchBackend:    "exa",
		NumSearchResults: 3,
	}
}

// AuthorResult is the payload of GET /authors/get.
type AuthorResult struct {
	Authors []string `json:"authors"`
	Queries []string `json:"queries,omitempty"`
}

// EmbedMetadata describes the embedding model served by the backend.
type EmbedMetadata struct {
	ModelID        string `json:"model_id"`
	EmbedType      string `json:"embed_type"`
	Dimensions     int    `json:"dimensions"`
	M              int    `json:"M"`
	EfConstruction int    `json:"ef_construction"`
}

// Metadata is the payload of GET /metadata.
type Metadata struct {
	Embed EmbedMetadata `json:"embed"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses the ISO 8601 variants the service emits. Naive
// timestamps are read as UTC. Unparseable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
