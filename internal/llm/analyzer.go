package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contentpipe/pkg/contracts/domain"
)

// maxAnalysisChars bounds how much of the extracted body goes into
// the analysis prompt.
const maxAnalysisChars = 4000

const analyzerSystemPrompt = `You are a content analyst. Respond with a single JSON object, no surrounding prose:
{"summary": string, "key_points": [string], "themes": [string], "sentiment": "positive"|"negative"|"neutral"|"mixed", "recommendations": [string]}`

// Analyzer implements the analyze stage on the model client.
type Analyzer struct {
	client *Client
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(client *Client, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{client: client, logger: logger}
}

type analysisPayload struct {
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	Themes          []string `json:"themes"`
	Sentiment       string   `json:"sentiment"`
	Recommendations []string `json:"recommendations"`
}

// Analyze asks the model for a structured reading of the content.
// When the reply is not parseable JSON the raw text becomes the
// summary rather than failing the stage.
func (a *Analyzer) Analyze(ctx context.Context, content *domain.ExtractedContent) (*domain.ContentAnalysis, error) {
	body := content.Body
	if len(body) > maxAnalysisChars {
		body = body[:maxAnalysisChars]
	}

	prompt := fmt.Sprintf("Title: %s\n\nContent:\n%s\n\nAnalyze this content.", content.Title, body)
	reply, err := a.client.Complete(ctx, analyzerSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	payload, ok := parseAnalysis(reply)
	if !ok {
		a.logger.WarnContext(ctx, "analysis reply was not structured, using raw summary",
			slog.String("url", content.URL))
		payload = analysisPayload{
			Summary:   strings.TrimSpace(truncate(reply, 500)),
			Sentiment: string(domain.SentimentNeutral),
		}
	}

	return &domain.ContentAnalysis{
		Summary:         payload.Summary,
		KeyPoints:       payload.KeyPoints,
		Themes:          payload.Themes,
		Sentiment:       normalizeSentiment(payload.Sentiment),
		Recommendations: payload.Recommendations,
		AnalyzedAt:      time.Now(),
	}, nil
}

func parseAnalysis(reply string) (analysisPayload, bool) {
	var payload analysisPayload
	if err := json.Unmarshal([]byte(reply), &payload); err == nil && payload.Summary != "" {
		return payload, true
	}
	if obj, ok := extractJSONObject(reply); ok {
		if err := json.Unmarshal([]byte(obj), &payload); err == nil && payload.Summary != "" {
			return payload, true
		}
	}
	return analysisPayload{}, false
}

func normalizeSentiment(s string) domain.Sentiment {
	switch domain.Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case domain.SentimentPositive:
		return domain.SentimentPositive
	case domain.SentimentNegative:
		return domain.SentimentNegative
	case domain.SentimentMixed:
		return domain.SentimentMixed
	default:
		return domain.SentimentNeutral
	}
}
