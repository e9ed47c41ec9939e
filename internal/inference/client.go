package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrMalformedResult is returned when a result payload lacks the fields
	// its job type requires.
	ErrMalformedResult = errors.New("malformed result")
)

// StatusError is returned for any non-200 response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: bad status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsClientError reports whether err is a 4xx response. Such requests fail
// the same way on every attempt and are not worth retrying.
func IsClientError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 400 && se.StatusCode < 500
	}
	return false
}

// RemoteError is a job that the service finished but reported as failed in
// its result payload.
type RemoteError struct {
	TaskID  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("task %s: %s", e.TaskID, e.Message)
}

// Client is a client for the remote embedding and author recommendation service.
type Client struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewClient creates a new inference client. apiKey may be empty.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SubmitNote queues a note for embedding.
func (c *Client) SubmitNote(ctx context.Context, req NoteRequest) (*Task, error) {
	return c.submit(ctx, ResourceNotes, req)
}

// SubmitEssay queues an essay for chunking and embedding.
func (c *Client) SubmitEssay(ctx context.Context, req EssayRequest) (*Task, error) {
	return c.submit(ctx, ResourceEssays, req)
}

// SubmitAuthors queues an author recommendation job.
func (c *Client) SubmitAuthors(ctx context.Context, req AuthorRequest) (*Task, error) {
	return c.submit(ctx, ResourceAuthors, req)
}

// Status returns the current envelope of a task.
func (c *Client) Status(ctx context.Context, resource Resource, taskID string) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodGet, taskPath(resource, "status", taskID), nil, &task); err != nil {
		return nil, err
	}
	if task.TaskID == "" {
		task.TaskID = taskID
	}
	return &task, nil
}

// GetNote fetches the embedding of a finished note task.
func (c *Client) GetNote(ctx context.Context, taskID string) (*NoteResult, error) {
	var result NoteResult
	if err := c.do(ctx, http.MethodGet, taskPath(ResourceNotes, "get", taskID), nil, &result); err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, &RemoteError{TaskID: taskID, Message: result.Error}
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("note task %s: missing embedding: %w", taskID, ErrMalformedResult)
	}
	return &result, nil
}

// GetEssay fetches the chunk embeddings of a finished essay task.
func (c *Client) GetEssay(ctx context.Context, taskID string) (*EssayResult, error) {
	var result EssayResult
	if err := c.do(ctx, http.MethodGet, taskPath(ResourceEssays, "get", taskID), nil, &result); err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, &RemoteError{TaskID: taskID, Message: result.Error}
	}
	if result.Nodes == nil {
		return nil, fmt.Errorf("essay task %s: missing nodes: %w", taskID, ErrMalformedResult)
	}
	for i, node := range result.Nodes {
		if len(node.Embedding) == 0 || node.NodeID == "" {
			return nil, fmt.Errorf("essay task %s: node %d incomplete: %w", taskID, i, ErrMalformedResult)
		}
	}
	return &result, nil
}

// GetAuthors fetches the recommendations of a finished author task.
func (c *Client) GetAuthors(ctx context.Context, taskID string) (*AuthorResult, error) {
	var result AuthorResult
	if err := c.do(ctx, http.MethodGet, taskPath(ResourceAuthors, "get", taskID), nil, &result); err != nil {
		return nil, err
	}
	if result.Authors == nil {
		return nil, fmt.Errorf("author task %s: missing authors: %w", taskID, ErrMalformedResult)
	}
	return &result, nil
}

// Metadata returns the embedding configuration of the service.
func (c *Client) Metadata(ctx context.Context) (*Metadata, error) {
	var md Metadata
	if err := c.do(ctx, http.MethodGet, "/metadata", nil, &md); err != nil {
		return nil, err
	}
	if md.Embed.EmbedType == "" || md.Embed.Dimensions <= 0 {
		return nil, fmt.Errorf("metadata missing embed type or dimensions: %w", ErrMalformedResult)
	}
	return &md, nil
}

func (c *Client) submit(ctx context.Context, resource Resource, payload any) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPost, "/"+string(resource)+"/submit", payload, &task); err != nil {
		return nil, err
	}
	if task.TaskID == "" {
		return nil, fmt.Errorf("%s submit: missing task_id: %w", resource, ErrMalformedResult)
	}
	return &task, nil
}

func taskPath(resource Resource, op, taskID string) string {
	return "/" + string(resource) + "/" + op + "?task_id=" + url.QueryEscape(taskID)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
