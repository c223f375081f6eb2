// Package llm talks to an OpenAI-compatible chat completion API and
// hosts the analyze and write stages built on it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"contentpipe/internal/pipeline"
)

// Config identifies the model endpoint.
type Config struct {
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
}

// Client is a minimal chat-completions client with client-side rate
// limiting. Failure classification follows the pipeline taxonomy:
// throttling and server errors are transient, request and auth
// errors are permanent.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a model client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends one system+user exchange and returns the model text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", pipeline.Transientf("rate limiter: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", pipeline.Permanentf("encode request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", pipeline.Permanentf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", pipeline.Transientf("model request timed out: %w", err)
		}
		return "", pipeline.Transientf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", pipeline.Transientf("read model response: %w", err)
	}

	c.logger.DebugContext(ctx, "model call finished",
		slog.String("model", c.cfg.Model),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", pipeline.Transientf("model endpoint returned %d: %s", resp.StatusCode, truncate(string(payload), 200))
	default:
		return "", pipeline.Permanentf("model endpoint rejected request with %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", pipeline.Transientf("decode model response: %w", err)
	}
	if parsed.Error != nil {
		return "", pipeline.Permanentf("model error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", pipeline.Transientf("model returned no completion")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// extractJSONObject pulls the outermost JSON object out of a model
// reply that may wrap it in prose or markdown fences.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
