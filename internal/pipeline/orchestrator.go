package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Orchestrator walks one task through its requested stages. Each
// stage input is built from the task request plus the outputs already
// recorded; each output is persisted before the next stage starts, so
// a failed task keeps everything produced before the failure.
type Orchestrator struct {
	store     *Store
	runner    *Runner
	extractor Extractor
	analyzer  Analyzer
	writer    Writer
	publisher Publisher
	metrics   Metrics
	logger    *slog.Logger
}

// NewOrchestrator wires the engine to its four collaborators.
func NewOrchestrator(store *Store, runner *Runner, extractor Extractor, analyzer Analyzer, writer Writer, publisher Publisher, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		runner:    runner,
		extractor: extractor,
		analyzer:  analyzer,
		writer:    writer,
		publisher: publisher,
		metrics:   NopMetrics{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OrchestratorOption configures optional orchestrator dependencies.
type OrchestratorOption func(*Orchestrator)

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// Execute runs the task with the given id to a terminal status. Only
// Pending tasks can be started; anything else returns ErrTaskFinished.
func (o *Orchestrator) Execute(ctx context.Context, taskID string) error {
	var claimErr error
	cancelled := false
	snap, err := o.store.Update(taskID, func(t *TaskRecord) {
		switch {
		case t.Status == StatusPending && t.CancelRequested:
			t.finish(StatusCancelled, nil)
			cancelled = true
		case t.Status == StatusPending:
			t.Status = StatusRunning
			t.StartedAt = time.Now()
		default:
			claimErr = ErrTaskFinished
		}
	})
	if err != nil {
		return err
	}
	if claimErr != nil {
		return claimErr
	}
	if cancelled {
		o.metrics.TaskFinished(ctx, StatusCancelled)
		o.logger.InfoContext(ctx, "task cancelled before start", slog.String("task_id", taskID))
		return nil
	}

	o.logger.InfoContext(ctx, "task started",
		slog.String("task_id", taskID),
		slog.Int("stages", len(snap.Request.Stages)))

	for _, stage := range snap.Request.orderedStages() {
		// Cancellation is honored only here, between stages. An
		// in-flight collaborator call always runs to completion or
		// attempt timeout.
		if o.cancelRequested(taskID) || ctx.Err() != nil {
			o.markCancelled(ctx, taskID)
			return nil
		}

		out, res := o.runStage(ctx, stage, snap)
		o.metrics.StageObserved(ctx, stage, res.Duration(), res.Err == nil)

		if res.Err != nil {
			if ctx.Err() != nil {
				o.markCancelled(ctx, taskID)
				return nil
			}
			stageErr := &StageError{
				Stage:   stage,
				Reason:  res.Reason(),
				Message: res.Err.Err.Error(),
			}
			if _, err := o.store.Update(taskID, func(t *TaskRecord) {
				t.finish(StatusFailed, stageErr)
			}); err != nil {
				return err
			}
			o.metrics.TaskFinished(ctx, StatusFailed)
			o.logger.WarnContext(ctx, "task failed",
				slog.String("task_id", taskID),
				slog.String("stage", string(stage)),
				slog.String("reason", string(stageErr.Reason)),
				slog.Int("attempts", res.Attempts))
			return nil
		}

		snap, err = o.store.Update(taskID, func(t *TaskRecord) {
			t.recordOutput(stage, out)
		})
		if err != nil {
			return err
		}
		o.logger.InfoContext(ctx, "stage completed",
			slog.String("task_id", taskID),
			slog.String("stage", string(stage)),
			slog.Int("attempts", res.Attempts),
			slog.Duration("duration", res.Duration()))
	}

	if _, err := o.store.Update(taskID, func(t *TaskRecord) {
		t.finish(StatusCompleted, nil)
	}); err != nil {
		return err
	}
	o.metrics.TaskFinished(ctx, StatusCompleted)
	o.logger.InfoContext(ctx, "task completed", slog.String("task_id", taskID))
	return nil
}

// runStage builds the typed input for one stage, invokes the
// collaborator through the retry runner and returns the typed output.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, t *TaskRecord) (StageOutputs, StageResult) {
	var out StageOutputs
	var call StageCall

	switch stage {
	case StageExtract:
		req := ExtractRequest{
			URL:           t.Request.URL,
			IncludeImages: t.Request.IncludeImages,
			IncludeLinks:  t.Request.IncludeLinks,
		}
		call = func(ctx context.Context) error {
			content, err := o.extractor.Extract(ctx, req)
			if err != nil {
				return err
			}
			out.Content = content
			return nil
		}

	case StageAnalyze:
		content := t.Outputs.Content
		if content == nil {
			content = t.Request.Content
		}
		if content == nil {
			return out, o.missingInput(stage, "extracted content")
		}
		call = func(ctx context.Context) error {
			analysis, err := o.analyzer.Analyze(ctx, content)
			if err != nil {
				return err
			}
			out.Analysis = analysis
			return nil
		}

	case StageWrite:
		analysis := t.Outputs.Analysis
		if analysis == nil {
			analysis = t.Request.Analysis
		}
		if analysis == nil {
			return out, o.missingInput(stage, "content analysis")
		}
		content := t.Outputs.Content
		if content == nil {
			content = t.Request.Content
		}
		req := WriteRequest{
			Analysis:    analysis,
			Content:     content,
			Style:       t.Request.Style,
			Audience:    t.Request.Audience,
			TargetWords: t.Request.TargetWords,
		}
		call = func(ctx context.Context) error {
			article, err := o.writer.Write(ctx, req)
			if err != nil {
				return err
			}
			out.Article = article
			return nil
		}

	case StagePublish:
		article := t.Outputs.Article
		if article == nil {
			article = t.Request.Article
		}
		if article == nil {
			return out, o.missingInput(stage, "article")
		}
		req := PublishRequest{
			Article:   article,
			Author:    t.Request.Author,
			DraftOnly: t.Request.DraftOnly,
		}
		call = func(ctx context.Context) error {
			receipt, err := o.publisher.Publish(ctx, req)
			if err != nil {
				return err
			}
			out.Receipt = receipt
			return nil
		}

	default:
		return out, o.missingInput(stage, "stage implementation")
	}

	return out, o.runner.Run(ctx, stage, call)
}

// missingInput reports a stage whose required input is absent. The
// submission validator prevents this for well-formed requests.
func (o *Orchestrator) missingInput(stage Stage, what string) StageResult {
	now := time.Now()
	return StageResult{
		Stage:     stage,
		Attempts:  1,
		StartTime: now,
		EndTime:   now,
		Err: &StageFailure{
			Stage:     stage,
			Retryable: false,
			Err:       Permanentf("missing %s input", what).Err,
		},
	}
}

func (o *Orchestrator) cancelRequested(taskID string) bool {
	t, err := o.store.Get(taskID)
	return err == nil && t.CancelRequested
}

func (o *Orchestrator) markCancelled(ctx context.Context, taskID string) {
	if _, err := o.store.Update(taskID, func(t *TaskRecord) {
		t.finish(StatusCancelled, nil)
	}); err != nil {
		return
	}
	o.metrics.TaskFinished(ctx, StatusCancelled)
	o.logger.InfoContext(ctx, "task cancelled", slog.String("task_id", taskID))
}
