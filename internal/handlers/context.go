package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"morph/internal/markdown"
	"morph/internal/retrieval"
	"morph/internal/storage"
	"morph/internal/viewport"
)

// Viewport modes accepted by the context endpoint.
const (
	ModeScroll = "scroll"
	ModeEditor = "editor"
)

// ContextFinder matches notes against the chunks of an essay.
type ContextFinder interface {
	FindSimilarNotes(ctx context.Context, fileID, vaultID string, noteIDs []string) []retrieval.ContextMatch
}

// ContextHandler anchors notes to the lines of an essay and narrows them to
// what the caller can see.
type ContextHandler struct {
	files    storage.FileStore
	notes    storage.NoteStore
	finder   ContextFinder
	outliner *markdown.Outliner
}

// NewContextHandler creates a new ContextHandler.
func NewContextHandler(files storage.FileStore, notes storage.NoteStore, finder ContextFinder) *ContextHandler {
	return &ContextHandler{files: files, notes: notes, finder: finder, outliner: markdown.NewOutliner()}
}

// ViewportRequest describes the visible part of the essay. Scroll mode
// uses pixel offsets, editor mode character offsets into the content.
type ViewportRequest struct {
	Mode           string  `json:"mode"`
	ScrollTop      float64 `json:"scroll_top"`
	ViewportHeight float64 `json:"viewport_height"`
	LineHeight     float64 `json:"line_height"`
	From           int     `json:"from"`
	To             int     `json:"to"`
}

// ContextRequest is the body of POST /api/files/{fileID}/context.
type ContextRequest struct {
	VaultID string `json:"vault_id"`
	// NoteIDs defaults to every note attached to the file.
	NoteIDs []string `json:"note_ids"`
	// Viewport is optional. Without it every match is returned.
	Viewport *ViewportRequest `json:"viewport"`
	Buffer   *int             `json:"buffer"`
}

// MatchResponse is one note anchored to a line of the essay.
type MatchResponse struct {
	NoteID      string  `json:"note_id"`
	Content     string  `json:"content"`
	Color       string  `json:"color,omitempty"`
	Similarity  float64 `json:"similarity"`
	StartLine   int     `json:"start_line"`
	EndLine     int     `json:"end_line"`
	LineNumber  int     `json:"line_number"`
	HeadingPath string  `json:"heading_path,omitempty"`
	TopOffset   float64 `json:"top_offset"`
}

// ContextResponse lists the matches near the visible range.
type ContextResponse struct {
	FileID  string          `json:"file_id"`
	Visible *viewport.Range `json:"visible,omitempty"`
	Matches []MatchResponse `json:"matches"`
}

// source builds the viewport source for content.
func (v ViewportRequest) source(content string) (viewport.Source, error) {
	switch v.Mode {
	case ModeScroll, "":
		return viewport.ScrollSource{ScrollTop: v.ScrollTop, ViewportHeight: v.ViewportHeight, LineHeight: v.LineHeight}, nil
	case ModeEditor:
		return viewport.EditorSource{Doc: content, From: v.From, To: v.To, ScrollTop: v.ScrollTop, LineHeight: v.LineHeight}, nil
	default:
		return nil, &ValidationError{Field: "viewport.mode", Message: "must be scroll or editor"}
	}
}

// ServeHTTP returns the notes similar to parts of the essay. Line numbers
// refer to the stored content including any frontmatter.
func (h *ContextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID := chi.URLParam(r, "fileID")

	var req ContextRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, ctx, err, "Invalid request body")
		return
	}
	buffer := viewport.DefaultBuffer
	if req.Buffer != nil {
		if *req.Buffer < 0 {
			handleError(w, ctx, &ValidationError{Field: "buffer", Message: "must not be negative"}, "Invalid request body")
			return
		}
		buffer = *req.Buffer
	}

	file, err := h.files.Get(ctx, fileID)
	if err != nil {
		handleError(w, ctx, err, "Failed to load file")
		return
	}
	if req.VaultID == "" {
		req.VaultID = file.VaultID
	}
	if req.VaultID != file.VaultID {
		handleError(w, ctx, &ValidationError{Field: "vault_id", Message: "does not match the file's vault"}, "Invalid request body")
		return
	}

	var src viewport.Source
	if req.Viewport != nil {
		if src, err = req.Viewport.source(file.Content); err != nil {
			handleError(w, ctx, err, "Invalid request body")
			return
		}
	}

	noteIDs := req.NoteIDs
	if noteIDs == nil {
		notes, err := h.notes.ListByFile(ctx, fileID)
		if err != nil {
			handleError(w, ctx, err, "Failed to list notes")
			return
		}
		for _, n := range notes {
			noteIDs = append(noteIDs, n.ID)
		}
	}

	// Chunk lines count from the start of the body the service embedded.
	doc := markdown.Split(file.Content)
	outline := h.outliner.Outline([]byte(doc.Body), file.Name)

	matches := h.finder.FindSimilarNotes(ctx, fileID, req.VaultID, noteIDs)
	for i := range matches {
		matches[i].StartLine += doc.BodyLine
		matches[i].EndLine += doc.BodyLine
		matches[i].LineNumber += doc.BodyLine
	}

	resp := ContextResponse{FileID: fileID, Matches: make([]MatchResponse, 0, len(matches))}
	var cards []viewport.Card
	if src != nil {
		visible, placed := viewport.Place(matches, src, buffer)
		resp.Visible = &visible
		cards = placed
	} else {
		for _, m := range matches {
			cards = append(cards, viewport.Card{ContextMatch: m})
		}
	}

	for _, c := range cards {
		resp.Matches = append(resp.Matches, MatchResponse{
			NoteID:      c.Note.ID,
			Content:     c.Note.Content,
			Color:       c.Note.Color,
			Similarity:  c.Similarity,
			StartLine:   c.StartLine,
			EndLine:     c.EndLine,
			LineNumber:  c.LineNumber,
			HeadingPath: outline.HeadingPath(c.LineNumber - doc.BodyLine),
			TopOffset:   c.TopOffset,
		})
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}
