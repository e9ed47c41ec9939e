package markdown

import (
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantBody  string
		wantTitle string
		wantLine  int
	}{
		{
			name:     "no frontmatter",
			content:  "# Essay\n\nbody",
			wantBody: "# Essay\n\nbody",
		},
		{
			name:      "frontmatter with title",
			content:   "---\ntitle: On Walking\ntags: [a, b]\n---\n# Essay\nbody",
			wantBody:  "# Essay\nbody",
			wantTitle: "On Walking",
			wantLine:  4,
		},
		{
			name:     "windows line endings",
			content:  "---\r\ndate: 2024-01-01\r\n---\r\nbody",
			wantBody: "body",
			wantLine: 3,
		},
		{
			name:     "unclosed block is left alone",
			content:  "---\ntitle: x\nbody",
			wantBody: "---\ntitle: x\nbody",
		},
		{
			name:     "invalid yaml is still stripped",
			content:  "---\n: : :\n  - [\n---\nbody",
			wantBody: "body",
			wantLine: 4,
		},
		{
			name:     "horizontal rule later in the document",
			content:  "intro\n---\nmore",
			wantBody: "intro\n---\nmore",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Split(tt.content)
			if doc.Body != tt.wantBody {
				t.Errorf("Split() body = %q, want %q", doc.Body, tt.wantBody)
			}
			if doc.Title() != tt.wantTitle {
				t.Errorf("Title() = %q, want %q", doc.Title(), tt.wantTitle)
			}
			if doc.BodyLine != tt.wantLine {
				t.Errorf("BodyLine = %d, want %d", doc.BodyLine, tt.wantLine)
			}
		})
	}

	if got := StripFrontmatter("---\na: 1\n---\nx"); got != "x" {
		t.Errorf("StripFrontmatter() = %q, want %q", got, "x")
	}
}

func TestOutliner_HeadingPath(t *testing.T) {
	body := []byte("intro line\n\n# Main\n\nContent 1\n\n## Sub\n\nContent 2\n\n### Deep\n\nx\n\n## Other\n\ny\n")
	outline := NewOutliner().Outline(body, "essay.md")

	if outline.Title != "Main" {
		t.Errorf("Title = %q, want %q", outline.Title, "Main")
	}
	if outline.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", outline.Len())
	}

	tests := []struct {
		line int
		want string
	}{
		{line: 0, want: "# Main"},
		{line: 2, want: "# Main"},
		{line: 4, want: "# Main"},
		{line: 6, want: "# Main > ## Sub"},
		{line: 8, want: "# Main > ## Sub"},
		{line: 10, want: "# Main > ## Sub > ### Deep"},
		{line: 14, want: "# Main > ## Other"},
		{line: 100, want: "# Main > ## Other"},
	}

	for _, tt := range tests {
		if got := outline.HeadingPath(tt.line); got != tt.want {
			t.Errorf("HeadingPath(%d) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestOutliner_NoHeadings(t *testing.T) {
	tests := []struct {
		name      string
		body      []byte
		filename  string
		wantTitle string
	}{
		{name: "empty", body: nil, filename: "my-essay.md", wantTitle: "My Essay"},
		{name: "plain text", body: []byte("just words"), filename: "notes_on_rain.md", wantTitle: "Notes On Rain"},
		{name: "no filename", body: []byte("just words"), filename: "", wantTitle: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outline := NewOutliner().Outline(tt.body, tt.filename)
			if outline.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", outline.Title, tt.wantTitle)
			}
			want := ""
			if tt.wantTitle != "" {
				want = "# " + tt.wantTitle
			}
			if got := outline.HeadingPath(3); got != want {
				t.Errorf("HeadingPath() = %q, want %q", got, want)
			}
		})
	}
}
