// Package extract fetches web pages through a headless browser and
// distills them into readable content for the pipeline.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"contentpipe/internal/pipeline"
	"contentpipe/pkg/contracts/domain"
)

// pageCapture is the raw payload pulled out of the browser in a
// single Evaluate round trip.
type pageCapture struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	Published   string   `json:"published"`
	Images      []string `json:"images"`
	Links       []string `json:"links"`
}

// captureScript walks the common article containers before falling
// back to the whole body, and collects meta tags in the same pass.
const captureScript = `(() => {
	const pick = (sel) => {
		const el = document.querySelector(sel);
		return el ? el.innerText : "";
	};
	let body = "";
	for (const sel of ["article", "[role='main']", "main", ".article-content", ".post-content", "#content", ".content"]) {
		body = pick(sel);
		if (body && body.length > 200) break;
	}
	if (!body || body.length <= 200) {
		body = document.body ? document.body.innerText : "";
	}
	const meta = (name) => {
		const el = document.querySelector("meta[name='" + name + "'], meta[property='" + name + "']");
		return el ? (el.getAttribute("content") || "") : "";
	};
	return {
		title: document.title || pick("h1"),
		body: body,
		description: meta("description") || meta("og:description"),
		author: meta("author") || meta("article:author"),
		published: meta("article:published_time") || meta("date"),
		images: Array.from(document.images).map(img => img.src || ""),
		links: Array.from(document.links).map(a => a.href || ""),
	};
})()`

// Config controls the browser extractor.
type Config struct {
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyChars int           `yaml:"max_body_chars"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
}

// Extractor implements pipeline.Extractor on top of chromedp.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a browser-backed extractor.
func New(cfg Config, logger *slog.Logger) *Extractor {
	if cfg.MaxBodyChars <= 0 {
		cfg.MaxBodyChars = 100_000
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract loads the page and returns its readable content. Timeouts
// and browser failures come back transient; a navigation that the
// browser rejects outright is permanent.
func (e *Extractor) Extract(ctx context.Context, req pipeline.ExtractRequest) (*domain.ExtractedContent, error) {
	base, err := url.Parse(req.URL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, pipeline.Permanentf("invalid url %q", req.URL)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if e.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(e.cfg.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var capture pageCapture
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(e.cfg.SettleDelay),
		chromedp.Evaluate(captureScript, &capture),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, pipeline.Transientf("page load timed out: %w", err)
		}
		if strings.Contains(err.Error(), "net::ERR_NAME_NOT_RESOLVED") ||
			strings.Contains(err.Error(), "net::ERR_INVALID_URL") {
			return nil, pipeline.Permanentf("navigation failed: %w", err)
		}
		return nil, pipeline.Transientf("browser error: %w", err)
	}

	body := strings.TrimSpace(capture.Body)
	if body == "" {
		return nil, pipeline.Permanentf("page %s has no readable content", req.URL)
	}
	if len(body) > e.cfg.MaxBodyChars {
		body = body[:e.cfg.MaxBodyChars]
	}

	content := &domain.ExtractedContent{
		URL:         req.URL,
		Title:       strings.TrimSpace(capture.Title),
		Body:        body,
		Metadata:    map[string]string{},
		RetrievedAt: time.Now(),
	}
	if capture.Description != "" {
		content.Metadata["description"] = capture.Description
	}
	if capture.Author != "" {
		content.Metadata["author"] = capture.Author
	}
	if capture.Published != "" {
		content.Metadata["published"] = capture.Published
	}
	if req.IncludeImages {
		content.Images = FilterImageURLs(base, capture.Images)
	}
	if req.IncludeLinks {
		content.Links = FilterLinkURLs(base, capture.Links)
	}

	e.logger.InfoContext(ctx, "page extracted",
		slog.String("url", req.URL),
		slog.Int("body_chars", len(body)),
		slog.Int("images", len(content.Images)),
		slog.Int("links", len(content.Links)))
	return content, nil
}
