package server

import (
	"time"

	"github.com/poiesic/glyph/ai"
	"github.com/poiesic/glyph/chat"
	"github.com/poiesic/glyph/core"
)

// documentView is the wire form of a document. The raw embedding is never exposed.
type documentView struct {
	ID           core.ID       `json:"id"`
	Content      string        `json:"content"`
	Metadata     core.Metadata `json:"metadata"`
	CreatedAt    time.Time     `json:"createdAt"`
	HasEmbedding bool          `json:"hasEmbedding"`
}

func toDocumentView(d *core.Document) documentView {
	meta := d.Metadata
	if meta == nil {
		meta = core.Metadata{}
	}
	return documentView{
		ID:           d.ID,
		Content:      d.Content,
		Metadata:     meta,
		CreatedAt:    d.CreatedAt,
		HasEmbedding: d.HasEmbedding(),
	}
}

func toDocumentViews(docs []*core.Document) []documentView {
	out := make([]documentView, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentView(d))
	}
	return out
}

type taskView struct {
	ID          core.ID         `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    int             `json:"priority"`
	Status      core.TaskStatus `json:"status"`
	Result      string          `json:"result,omitempty"`
	Plan        string          `json:"plan,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func toTaskView(t *core.Task) taskView {
	return taskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		Result:      t.Result,
		Plan:        t.Plan,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type searchResultView struct {
	ID       core.ID `json:"id"`
	Filename string  `json:"filename,omitempty"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
}

type ingestRequest struct {
	FilePath string `json:"filePath"`
	Path     string `json:"path"`
	Type     string `json:"type"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type chatRequest struct {
	Message string       `json:"message"`
	History []ai.Message `json:"history"`
}

type chatResponse struct {
	Success  bool          `json:"success"`
	Response string        `json:"response"`
	Sources  []chat.Source `json:"sources"`
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}
