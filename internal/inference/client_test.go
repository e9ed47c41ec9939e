package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8000/", "")
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.BaseURL != "http://localhost:8000" {
		t.Errorf("NewClient() BaseURL = %v, want trailing slash trimmed", client.BaseURL)
	}
}

func TestClient_SubmitNote(t *testing.T) {
	tests := []struct {
		name       string
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantErr    bool
		wantClient bool
	}{
		{
			name: "accepted",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/notes/submit" {
					t.Errorf("expected /notes/submit, got %s", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer key" {
					t.Errorf("Authorization = %q", got)
				}
				var req NoteRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if req.NoteID != "n1" || req.Content != "hello" || req.VaultID != "v1" || req.FileID != "f1" {
					t.Errorf("unexpected request %+v", req)
				}
				_, _ = w.Write([]byte(`{"task_id":"t1","status":"in_progress","created_at":"2025-03-01T10:00:00Z","executed_at":null}`))
			},
		},
		{
			name: "missing task id",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"in_progress"}`))
			},
			wantErr: true,
		},
		{
			name: "bad request",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"detail":"content required"}`))
			},
			wantErr:    true,
			wantClient: true,
		},
		{
			name: "server error",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			client := NewClient(server.URL, "key")
			task, err := client.SubmitNote(context.Background(), NoteRequest{VaultID: "v1", FileID: "f1", NoteID: "n1", Content: "hello"})

			if tt.wantErr {
				if err == nil {
					t.Fatal("SubmitNote() expected error, got nil")
				}
				if IsClientError(err) != tt.wantClient {
					t.Errorf("IsClientError() = %v, want %v", IsClientError(err), tt.wantClient)
				}
				return
			}
			if err != nil {
				t.Fatalf("SubmitNote() unexpected error: %v", err)
			}
			if task.TaskID != "t1" || task.Status != "in_progress" {
				t.Errorf("SubmitNote() = %+v", task)
			}
			if !task.Created().Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
				t.Errorf("Created() = %v", task.Created())
			}
			if !task.Executed().IsZero() {
				t.Errorf("Executed() = %v, want zero", task.Executed())
			}
		})
	}
}

func TestClient_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/essays/status" {
			t.Errorf("expected /essays/status, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("task_id"); got != "t 1" {
			t.Errorf("task_id = %q", got)
		}
		_, _ = w.Write([]byte(`{"task_id":"t 1","status":"success","created_at":"2025-03-01T10:00:00","executed_at":"2025-03-01T10:00:05.123456"}`))
	}))
	defer server.Close()

	task, err := NewClient(server.URL, "").Status(context.Background(), ResourceEssays, "t 1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if task.Status != "success" {
		t.Errorf("Status() status = %s", task.Status)
	}
	if task.Executed().IsZero() {
		t.Error("Executed() should parse naive timestamps")
	}
}

func TestClient_GetNote(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantErr       bool
		wantMalformed bool
	}{
		{
			name: "embedding",
			body: `{"vault_id":"v1","file_id":"f1","note_id":"n1","embedding":[0.1,0.2],"usage":{"prompt_tokens":3,"total_tokens":3}}`,
		},
		{
			name:          "missing embedding",
			body:          `{"vault_id":"v1","file_id":"f1","note_id":"n1"}`,
			wantErr:       true,
			wantMalformed: true,
		},
		{
			name:    "remote error",
			body:    `{"note_id":"n1","embedding":[],"error":"model overloaded"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			result, err := NewClient(server.URL, "").GetNote(context.Background(), "t1")
			if tt.wantErr {
				if err == nil {
					t.Fatal("GetNote() expected error, got nil")
				}
				if errors.Is(err, ErrMalformedResult) != tt.wantMalformed {
					t.Errorf("GetNote() error = %v, malformed want %v", err, tt.wantMalformed)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetNote() unexpected error: %v", err)
			}
			if len(result.Embedding) != 2 || result.Usage == nil || result.Usage.TotalTokens != 3 {
				t.Errorf("GetNote() = %+v", result)
			}
		})
	}
}

func TestClient_GetEssay(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantNodes int
	}{
		{
			name: "nodes with mixed line map values",
			body: `{"vault_id":"v1","file_id":"f1","nodes":[{"embedding":[1,0],"node_id":"a",
				"metadata":{"line_numbers":[1,2],"start_line":1,"end_line":2,"line_map":{"1":"0","2":3},"document_title":"Essay"},
				"relationships":{"1":{"node_id":"x"}},"metadata_separator":"\n"}]}`,
			wantNodes: 1,
		},
		{
			name:      "empty nodes",
			body:      `{"vault_id":"v1","file_id":"f1","nodes":[]}`,
			wantNodes: 0,
		},
		{
			name:    "missing nodes",
			body:    `{"vault_id":"v1","file_id":"f1"}`,
			wantErr: true,
		},
		{
			name:    "node without embedding",
			body:    `{"nodes":[{"node_id":"a","metadata":{}}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			result, err := NewClient(server.URL, "").GetEssay(context.Background(), "t1")
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedResult) {
					t.Errorf("GetEssay() error = %v, want ErrMalformedResult", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetEssay() unexpected error: %v", err)
			}
			if len(result.Nodes) != tt.wantNodes {
				t.Fatalf("GetEssay() nodes = %d, want %d", len(result.Nodes), tt.wantNodes)
			}
			if tt.wantNodes > 0 {
				md := result.Nodes[0].Metadata
				if md.LineMap["2"] != "3" || md.StartLine != 1 || md.DocumentTitle != "Essay" {
					t.Errorf("metadata = %+v", md)
				}
			}
		})
	}
}

func TestClient_GetAuthors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/authors/get" {
			t.Errorf("expected /authors/get, got %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"authors":["Joan Didion"],"queries":["essays on california"]}`))
	}))
	defer server.Close()

	result, err := NewClient(server.URL, "").GetAuthors(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetAuthors() error = %v", err)
	}
	if len(result.Authors) != 1 || len(result.Queries) != 1 {
		t.Errorf("GetAuthors() = %+v", result)
	}
}

func TestClient_Metadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embed":{"model_id":"nomic-ai/nomic-embed-text-v1.5","embed_type":"nomic","dimensions":768,"M":16,"ef_construction":50}}`))
	}))
	defer server.Close()

	md, err := NewClient(server.URL, "").Metadata(context.Background())
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if md.Embed.Dimensions != 768 || md.Embed.M != 16 || md.Embed.EfConstruction != 50 {
		t.Errorf("Metadata() = %+v", md)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantZero bool
	}{
		{name: "rfc3339", in: "2025-03-01T10:00:00Z"},
		{name: "offset with fraction", in: "2025-03-01T10:00:00.5+02:00"},
		{name: "naive", in: "2025-03-01T10:00:00.123456"},
		{name: "space separated", in: "2025-03-01 10:00:00"},
		{name: "empty", in: "", wantZero: true},
		{name: "garbage", in: "yesterday", wantZero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseTimestamp(tt.in); got.IsZero() != tt.wantZero {
				t.Errorf("ParseTimestamp(%q) = %v, wantZero %v", tt.in, got, tt.wantZero)
			}
		})
	}
}
