// Package viewport maps a scroll position onto the lines of a document and
// narrows context matches to the ones near the visible part.
package viewport

import (
	"math"

	"morph/internal/retrieval"
)

const (
	// DefaultBuffer is how many lines beyond the visible range still count
	// as visible, so cards appear just before their anchor scrolls in.
	DefaultBuffer = 15
	// DefaultLineHeight is the assumed height of one line in pixels.
	DefaultLineHeight = 24.0
)

// Range is an inclusive span of 0-indexed lines.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether line lies within the range widened by buffer
// lines on each side.
func (r Range) Contains(line, buffer int) bool {
	return line >= r.Start-buffer && line <= r.End+buffer
}

// Source produces the visible range of one display surface.
type Source interface {
	// Visible returns the visible line range.
	Visible() Range
	// Scroll returns the scroll offset and line height used to place cards.
	Scroll() (top, lineHeight float64)
}

// ScrollSource estimates the visible lines of a plain scroll container
// from its scroll offset and an assumed line height.
type ScrollSource struct {
	ScrollTop      float64
	ViewportHeight float64
	// LineHeight defaults to DefaultLineHeight when zero.
	LineHeight float64
}

// Visible implements Source.
func (s ScrollSource) Visible() Range {
	lh := lineHeightOr(s.LineHeight)
	top := math.Max(s.ScrollTop, 0)
	return Range{
		Start: int(math.Floor(top / lh)),
		End:   int(math.Floor((top + math.Max(s.ViewportHeight, 0)) / lh)),
	}
}

// Scroll implements Source.
func (s ScrollSource) Scroll() (float64, float64) {
	return s.ScrollTop, lineHeightOr(s.LineHeight)
}

// EditorSource is an editing surface that reports the character offsets
// of the first and last visible line blocks.
type EditorSource struct {
	Doc  string
	From int
	To   int

	ScrollTop  float64
	LineHeight float64
}

// Visible implements Source.
func (s EditorSource) Visible() Range {
	start, end := LineAt(s.Doc, s.From), LineAt(s.Doc, s.To)
	if end < start {
		end = start
	}
	return Range{Start: start, End: end}
}

// Scroll implements Source.
func (s EditorSource) Scroll() (float64, float64) {
	return s.ScrollTop, lineHeightOr(s.LineHeight)
}

// LineAt returns the 0-indexed line holding the character at offset.
// Offsets count runes and are clamped to the document.
func LineAt(doc string, offset int) int {
	line, n := 0, 0
	for _, r := range doc {
		if n >= offset {
			break
		}
		if r == '\n' {
			line++
		}
		n++
	}
	return line
}

func lineHeightOr(h float64) float64 {
	if h <= 0 {
		return DefaultLineHeight
	}
	return h
}

// Filter returns the matches whose line number lies within r widened by
// buffer lines, keeping their order.
func Filter(matches []retrieval.ContextMatch, r Range, buffer int) []retrieval.ContextMatch {
	out := make([]retrieval.ContextMatch, 0, len(matches))
	for _, m := range matches {
		if r.Contains(m.LineNumber, buffer) {
			out = append(out, m)
		}
	}
	return out
}

// TopOffset is the pixel offset of line from the top of the visible area,
// corrected for a partially scrolled first line.
func TopOffset(line int, r Range, lineHeight, scrollTop float64) float64 {
	lh := lineHeightOr(lineHeight)
	return float64(line-r.Start)*lh + math.Mod(math.Max(scrollTop, 0), lh)
}

// Card is a match placed relative to the visible area.
type Card struct {
	retrieval.ContextMatch
	TopOffset float64
}

// Place filters matches to the visible range of src and positions each.
func Place(matches []retrieval.ContextMatch, src Source, buffer int) (Range, []Card) {
	r := src.Visible()
	top, lh := src.Scroll()

	visible := Filter(matches, r, buffer)
	cards := make([]Card, 0, len(visible))
	for _, m := range visible {
		cards = append(cards, Card{ContextMatch: m, TopOffset: TopOffset(m.LineNumber, r, lh, top)})
	}
	return r, cards
}
