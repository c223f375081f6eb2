package pipeline_test

import (
	"context"
	"sync/atomic"
	"time"

	"contentpipe/internal/pipeline"
	"contentpipe/pkg/contracts/domain"
)

// Stub collaborators with call counters and swappable behavior.

type stubExtractor struct {
	calls int32
	fn    func(ctx context.Context, req pipeline.ExtractRequest) (*domain.ExtractedContent, error)
}

func (s *stubExtractor) Extract(ctx context.Context, req pipeline.ExtractRequest) (*domain.ExtractedContent, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.fn != nil {
		return s.fn(ctx, req)
	}
	return testContent(req.URL), nil
}

func (s *stubExtractor) callCount() int { return int(atomic.LoadInt32(&s.calls)) }

type stubAnalyzer struct {
	calls int32
	fn    func(ctx context.Context, content *domain.ExtractedContent) (*domain.ContentAnalysis, error)
}

func (s *stubAnalyzer) Analyze(ctx context.Context, content *domain.ExtractedContent) (*domain.ContentAnalysis, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.fn != nil {
		return s.fn(ctx, content)
	}
	return testAnalysis(), nil
}

func (s *stubAnalyzer) callCount() int { return int(atomic.LoadInt32(&s.calls)) }

type stubWriter struct {
	calls int32
	fn    func(ctx context.Context, req pipeline.WriteRequest) (*domain.Article, error)
}

func (s *stubWriter) Write(ctx context.Context, req pipeline.WriteRequest) (*domain.Article, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.fn != nil {
		return s.fn(ctx, req)
	}
	return testArticle(), nil
}

func (s *stubWriter) callCount() int { return int(atomic.LoadInt32(&s.calls)) }

type stubPublisher struct {
	calls int32
	fn    func(ctx context.Context, req pipeline.PublishRequest) (*domain.PublishReceipt, error)
}

func (s *stubPublisher) Publish(ctx context.Context, req pipeline.PublishRequest) (*domain.PublishReceipt, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.fn != nil {
		return s.fn(ctx, req)
	}
	return &domain.PublishReceipt{Platform: "wechat", DraftID: "draft-1", PublishedAt: time.Now()}, nil
}

func (s *stubPublisher) callCount() int { return int(atomic.LoadInt32(&s.calls)) }

func testContent(url string) *domain.ExtractedContent {
	return &domain.ExtractedContent{
		URL:         url,
		Title:       "A Title",
		Body:        "body text that is long enough to analyze",
		RetrievedAt: time.Now(),
	}
}

func testAnalysis() *domain.ContentAnalysis {
	return &domain.ContentAnalysis{
		Summary:    "a summary",
		KeyPoints:  []string{"one", "two"},
		Themes:     []string{"tech"},
		Sentiment:  domain.SentimentNeutral,
		AnalyzedAt: time.Now(),
	}
}

func testArticle() *domain.Article {
	return &domain.Article{
		Title:       "Generated Title",
		Content:     "generated article content",
		Summary:     "generated summary",
		WordCount:   3,
		GeneratedAt: time.Now(),
	}
}

// harness bundles a store, stubs and an orchestrator wired with fast
// retries.
type harness struct {
	store     *pipeline.Store
	extractor *stubExtractor
	analyzer  *stubAnalyzer
	writer    *stubWriter
	publisher *stubPublisher
	orch      *pipeline.Orchestrator
}

func newHarness() *harness {
	h := &harness{
		store:     pipeline.NewStore(),
		extractor: &stubExtractor{},
		analyzer:  &stubAnalyzer{},
		writer:    &stubWriter{},
		publisher: &stubPublisher{},
	}
	runner := pipeline.NewRunner(fastRetry(), fixedTimeout(time.Second), nil)
	h.orch = pipeline.NewOrchestrator(h.store, runner, h.extractor, h.analyzer, h.writer, h.publisher)
	return h
}

func (h *harness) submit(req pipeline.TaskRequest) *pipeline.TaskRecord {
	task := pipeline.NewTask(req)
	if err := h.store.Create(task); err != nil {
		panic(err)
	}
	return task
}

func allStages() []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.StageExtract,
		pipeline.StageAnalyze,
		pipeline.StageWrite,
		pipeline.StagePublish,
	}
}
