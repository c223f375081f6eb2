package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contentpipe/internal/pipeline"
	"contentpipe/pkg/contracts/domain"
)

const writerSystemPrompt = `You are a professional article writer. Respond with a single JSON object, no surrounding prose:
{"title": string, "content": string, "summary": string, "tags": [string]}`

// Writer implements the write stage on the model client.
type Writer struct {
	client *Client
	logger *slog.Logger
}

// NewWriter creates a writer.
func NewWriter(client *Client, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{client: client, logger: logger}
}

type articlePayload struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// Write turns an analysis into a finished article in the requested
// style for the requested audience.
func (w *Writer) Write(ctx context.Context, req pipeline.WriteRequest) (*domain.Article, error) {
	prompt := w.buildPrompt(req)
	reply, err := w.client.Complete(ctx, writerSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	payload, ok := parseArticle(reply)
	if !ok {
		// The model wrote prose instead of JSON; salvage it as the
		// article body.
		w.logger.WarnContext(ctx, "article reply was not structured, salvaging plain text")
		payload = salvageArticle(reply, req.Analysis)
	}
	if strings.TrimSpace(payload.Content) == "" {
		return nil, pipeline.Transientf("model produced an empty article")
	}
	if payload.Title == "" {
		payload.Title = firstLine(payload.Content)
	}
	if payload.Summary == "" {
		payload.Summary = req.Analysis.Summary
	}
	if len(payload.Tags) == 0 {
		payload.Tags = req.Analysis.Themes
	}

	return &domain.Article{
		Title:       payload.Title,
		Content:     payload.Content,
		Summary:     payload.Summary,
		Tags:        payload.Tags,
		WordCount:   countWords(payload.Content),
		Style:       req.Style,
		GeneratedAt: time.Now(),
	}, nil
}

func (w *Writer) buildPrompt(req pipeline.WriteRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n", styleInstruction(req.Style), audienceInstruction(req.Audience))
	fmt.Fprintf(&b, "Target length: about %d words.\n\n", req.TargetWords)
	fmt.Fprintf(&b, "Source summary:\n%s\n\n", req.Analysis.Summary)
	if len(req.Analysis.KeyPoints) > 0 {
		b.WriteString("Key points:\n")
		for _, p := range req.Analysis.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}
	if len(req.Analysis.Themes) > 0 {
		fmt.Fprintf(&b, "Themes: %s\n\n", strings.Join(req.Analysis.Themes, ", "))
	}
	if req.Content != nil && req.Content.Title != "" {
		fmt.Fprintf(&b, "Original title: %s\n\n", req.Content.Title)
	}
	b.WriteString("Write the article.")
	return b.String()
}

func parseArticle(reply string) (articlePayload, bool) {
	var payload articlePayload
	if err := json.Unmarshal([]byte(reply), &payload); err == nil && payload.Content != "" {
		return payload, true
	}
	if obj, ok := extractJSONObject(reply); ok {
		if err := json.Unmarshal([]byte(obj), &payload); err == nil && payload.Content != "" {
			return payload, true
		}
	}
	return articlePayload{}, false
}

func salvageArticle(reply string, analysis *domain.ContentAnalysis) articlePayload {
	text := strings.TrimSpace(reply)
	return articlePayload{
		Title:   firstLine(text),
		Content: text,
		Summary: analysis.Summary,
		Tags:    analysis.Themes,
	}
}

func firstLine(s string) string {
	line := s
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		line = s[:idx]
	}
	line = strings.TrimSpace(strings.TrimLeft(line, "# "))
	if line == "" {
		line = "Untitled"
	}
	return truncate(line, 120)
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
