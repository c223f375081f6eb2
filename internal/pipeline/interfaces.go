package pipeline

import (
	"context"

	"contentpipe/pkg/contracts/domain"
)

// ExtractRequest is the input of the extract stage.
type ExtractRequest struct {
	URL           string
	IncludeImages bool
	IncludeLinks  bool
}

// WriteRequest is the input of the write stage.
type WriteRequest struct {
	Analysis    *domain.ContentAnalysis
	Content     *domain.ExtractedContent
	Style       domain.WritingStyle
	Audience    domain.Audience
	TargetWords int
}

// PublishRequest is the input of the publish stage.
type PublishRequest struct {
	Article   *domain.Article
	Author    string
	DraftOnly bool
}

// Extractor fetches and distills a web page.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*domain.ExtractedContent, error)
}

// Analyzer derives a structured analysis from extracted content.
type Analyzer interface {
	Analyze(ctx context.Context, content *domain.ExtractedContent) (*domain.ContentAnalysis, error)
}

// Writer produces an article from an analysis.
type Writer interface {
	Write(ctx context.Context, req WriteRequest) (*domain.Article, error)
}

// Publisher delivers an article to the publishing platform.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (*domain.PublishReceipt, error)
}
