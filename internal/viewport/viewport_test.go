package viewport

import (
	"slices"
	"testing"

	"morph/internal/retrieval"
)

func match(id string, line int) retrieval.ContextMatch {
	m := retrieval.ContextMatch{StartLine: line, LineNumber: line, Similarity: 0.8}
	m.Note.ID = id
	return m
}

func TestRange_Contains(t *testing.T) {
	tests := []struct {
		name string
		r    Range
		want bool
	}{
		{name: "inside", r: Range{Start: 90, End: 110}, want: true},
		{name: "just before with buffer", r: Range{Start: 115, End: 140}, want: true},
		{name: "first range past buffer", r: Range{Start: 116, End: 140}, want: false},
		{name: "just after with buffer", r: Range{Start: 0, End: 85}, want: true},
		{name: "last range short of buffer", r: Range{Start: 0, End: 84}, want: false},
		{name: "empty range at line", r: Range{Start: 100, End: 100}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Contains(100, DefaultBuffer); got != tt.want {
				t.Errorf("%+v.Contains(100, 15) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestRange_Contains_Sweep(t *testing.T) {
	const line = 100
	for start := 0; start <= 200; start++ {
		for _, width := range []int{0, 10, 20, 40} {
			r := Range{Start: start, End: start + width}
			want := start-DefaultBuffer <= line && line <= start+width+DefaultBuffer
			if got := r.Contains(line, DefaultBuffer); got != want {
				t.Fatalf("%+v.Contains(%d) = %v, want %v", r, line, got, want)
			}
		}
	}
}

func TestFilter(t *testing.T) {
	matches := []retrieval.ContextMatch{match("a", 0), match("b", 40), match("c", 100), match("d", 125), match("e", 126)}

	got := Filter(matches, Range{Start: 90, End: 110}, DefaultBuffer)
	var ids []string
	for _, m := range got {
		ids = append(ids, m.Note.ID)
	}
	if !slices.Equal(ids, []string{"c", "d"}) {
		t.Errorf("Filter() = %v, want [c d]", ids)
	}

	if got := Filter(nil, Range{}, DefaultBuffer); got == nil || len(got) != 0 {
		t.Errorf("Filter(nil) = %v, want empty", got)
	}
}

func TestScrollSource_Visible(t *testing.T) {
	tests := []struct {
		name string
		src  ScrollSource
		want Range
	}{
		{name: "top", src: ScrollSource{ScrollTop: 0, ViewportHeight: 480}, want: Range{Start: 0, End: 20}},
		{name: "partial line", src: ScrollSource{ScrollTop: 250, ViewportHeight: 480}, want: Range{Start: 10, End: 30}},
		{name: "custom line height", src: ScrollSource{ScrollTop: 100, ViewportHeight: 200, LineHeight: 20}, want: Range{Start: 5, End: 15}},
		{name: "negative overscroll", src: ScrollSource{ScrollTop: -30, ViewportHeight: 48}, want: Range{Start: 0, End: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.src.Visible(); got != tt.want {
				t.Errorf("Visible() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEditorSource_Visible(t *testing.T) {
	doc := "line zero\nline one\nline two\nline three"

	tests := []struct {
		name     string
		from, to int
		want     Range
	}{
		{name: "whole document", from: 0, to: len(doc), want: Range{Start: 0, End: 3}},
		{name: "middle", from: 10, to: 20, want: Range{Start: 1, End: 2}},
		{name: "offset on newline", from: 9, to: 9, want: Range{Start: 0, End: 0}},
		{name: "past the end", from: 0, to: 1000, want: Range{Start: 0, End: 3}},
		{name: "inverted", from: 20, to: 0, want: Range{Start: 2, End: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := EditorSource{Doc: doc, From: tt.from, To: tt.to}
			if got := src.Visible(); got != tt.want {
				t.Errorf("Visible() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLineAt_Runes(t *testing.T) {
	doc := "héllo\nwörld"
	if got := LineAt(doc, 6); got != 1 {
		t.Errorf("LineAt(6) = %d, want 1", got)
	}
	if got := LineAt(doc, 5); got != 0 {
		t.Errorf("LineAt(5) = %d, want 0", got)
	}
}

func TestTopOffset(t *testing.T) {
	tests := []struct {
		name      string
		line      int
		r         Range
		scrollTop float64
		want      float64
	}{
		{name: "first visible line", line: 10, r: Range{Start: 10, End: 30}, scrollTop: 240, want: 0},
		{name: "lines below start", line: 13, r: Range{Start: 10, End: 30}, scrollTop: 240, want: 72},
		{name: "partially scrolled", line: 10, r: Range{Start: 10, End: 30}, scrollTop: 250, want: 10},
		{name: "buffered line above", line: 5, r: Range{Start: 10, End: 30}, scrollTop: 240, want: -120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TopOffset(tt.line, tt.r, DefaultLineHeight, tt.scrollTop); got != tt.want {
				t.Errorf("TopOffset() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlace(t *testing.T) {
	matches := []retrieval.ContextMatch{match("a", 12), match("b", 200)}
	src := ScrollSource{ScrollTop: 240, ViewportHeight: 480}

	r, cards := Place(matches, src, DefaultBuffer)
	if r != (Range{Start: 10, End: 30}) {
		t.Errorf("range = %+v, want {10 30}", r)
	}
	if len(cards) != 1 || cards[0].Note.ID != "a" {
		t.Fatalf("cards = %+v, want only a", cards)
	}
	if cards[0].TopOffset != 48 {
		t.Errorf("TopOffset = %v, want 48", cards[0].TopOffset)
	}
}
