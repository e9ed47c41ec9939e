// Package markdown prepares essay content for embedding and maps line
// numbers back to the headings a reader sees.
package markdown

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Document is markdown content split into its YAML frontmatter and body.
type Document struct {
	Body        string
	Frontmatter map[string]any
	// BodyLine is the 0-indexed source line on which Body starts.
	BodyLine int
}

// Title returns the frontmatter title, if any.
func (d Document) Title() string {
	if d.Frontmatter == nil {
		return ""
	}
	if title, ok := d.Frontmatter["title"].(string); ok {
		return strings.TrimSpace(title)
	}
	return ""
}

// Split separates a leading "---" delimited frontmatter block from the
// body. Content without a closed block is returned unchanged. A block that
// is not valid YAML is still removed, with a nil Frontmatter.
func Split(content string) Document {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, delimiter+"\n") {
		return Document{Body: content}
	}

	lines := strings.Split(normalized, "\n")
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t") == delimiter {
			end = i
			break
		}
	}
	if end < 0 {
		return Document{Body: content}
	}

	doc := Document{
		Body:     strings.Join(lines[end+1:], "\n"),
		BodyLine: end + 1,
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &fm); err == nil {
		doc.Frontmatter = fm
	}
	return doc
}

// StripFrontmatter returns content without its frontmatter block.
func StripFrontmatter(content string) string {
	return Split(content).Body
}
