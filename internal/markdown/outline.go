package markdown

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Outliner builds heading outlines from markdown using goldmark.
type Outliner struct {
	parser goldmark.Markdown
}

// NewOutliner creates a new Outliner.
func NewOutliner() *Outliner {
	return &Outliner{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// section is a heading and the line it starts on.
type section struct {
	line int
	path string
}

// Outline maps body lines to the heading path they sit under.
type Outline struct {
	Title    string
	sections []section
}

// Outline parses body and records the heading path in effect at each
// heading line. Lines are 0-indexed from the start of body.
func (o *Outliner) Outline(body []byte, filename string) *Outline {
	out := &Outline{}
	if len(body) == 0 {
		out.Title = titleFromFilename(filename)
		return out
	}

	doc := o.parser.Parser().Parse(text.NewReader(body))
	stack := []headingInfo{}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}

		headingText := textOf(heading, body)
		if out.Title == "" && heading.Level <= 2 {
			out.Title = headingText
		}

		for len(stack) > 0 && stack[len(stack)-1].level >= heading.Level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, headingInfo{level: heading.Level, text: headingText})

		out.sections = append(out.sections, section{
			line: lineOf(heading, body),
			path: buildHeadingPath(stack),
		})
		return ast.WalkSkipChildren, nil
	})

	if out.Title == "" {
		out.Title = titleFromFilename(filename)
	}
	return out
}

// HeadingPath returns the path of the last heading at or before line, or
// the document title when line precedes every heading.
func (o *Outline) HeadingPath(line int) string {
	i := sort.Search(len(o.sections), func(i int) bool {
		return o.sections[i].line > line
	})
	if i == 0 {
		if o.Title == "" {
			return ""
		}
		return "# " + o.Title
	}
	return o.sections[i-1].path
}

// Len returns the number of headings in the outline.
func (o *Outline) Len() int {
	return len(o.sections)
}

// headingInfo tracks heading level and text for building heading paths.
type headingInfo struct {
	level int
	text  string
}

// buildHeadingPath builds a heading path string from the heading stack.
// Format: "# Heading1 > ## Heading2 > ### Heading3"
func buildHeadingPath(stack []headingInfo) string {
	parts := make([]string, len(stack))
	for i, h := range stack {
		parts[i] = fmt.Sprintf("%s %s", strings.Repeat("#", h.level), h.text)
	}
	return strings.Join(parts, " > ")
}

// lineOf returns the 0-indexed line of the first segment of n.
func lineOf(n ast.Node, source []byte) int {
	lines := n.Lines()
	if lines == nil || lines.Len() == 0 {
		return 0
	}
	return bytes.Count(source[:lines.At(0).Start], []byte("\n"))
}

// textOf extracts the text content of a node and its children.
func textOf(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// titleFromFilename removes the extension and capitalizes each word.
func titleFromFilename(filename string) string {
	if filename == "" {
		return ""
	}
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(name))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
