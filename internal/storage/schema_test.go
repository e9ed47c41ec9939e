package storage

import (
	"math"
	"testing"
)

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already safe", in: "openai_3", want: "openai_3"},
		{name: "upper case", in: "OpenAI", want: "openai"},
		{name: "punctuation", in: "text-embedding.3/small", want: "text_embedding_3_small"},
		{name: "sql injection", in: "x; DROP TABLE notes", want: "x__drop_table_notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeIdentifier(tt.in); got != tt.want {
				t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEmbedSchema_TableNames(t *testing.T) {
	s := EmbedSchema{EmbedType: "Nomic-Embed", Dimensions: 768}

	if got := s.NoteTable(); got != "nomic_embed_note_embeddings" {
		t.Errorf("NoteTable() = %q", got)
	}
	if got := s.EssayTable(); got != "nomic_embed_essay_embeddings" {
		t.Errorf("EssayTable() = %q", got)
	}
	if got := IndexName(s.NoteTable()); got != "idx_nomic_embed_note_embeddings_hnsw" {
		t.Errorf("IndexName() = %q", got)
	}
}

func TestEncodeDecodeVector(t *testing.T) {
	in := []float32{0, 1.5, -2.25, float32(math.Pi)}

	out, err := DecodeVector(EncodeVector(in))
	if err != nil {
		t.Fatalf("DecodeVector() error = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("DecodeVector() len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("DecodeVector()[%d] = %v, want %v", i, out[i], in[i])
		}
	}

	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("DecodeVector() expected error for truncated blob")
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"in_progress", "success", "failure", "cancelled"} {
		if _, err := ParseStatus(s); err != nil {
			t.Errorf("ParseStatus(%q) error = %v", s, err)
		}
	}
	if _, err := ParseStatus("queued"); err == nil {
		t.Error("ParseStatus(queued) expected error")
	}
	if StatusInProgress.Terminal() {
		t.Error("in_progress should not be terminal")
	}
	if !StatusCancelled.Terminal() {
		t.Error("cancelled should be terminal")
	}
}
