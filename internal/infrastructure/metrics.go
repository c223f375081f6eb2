package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"contentpipe/internal/pipeline"
)

// PipelineMetrics publishes task and stage counters through the
// OpenTelemetry meter. It implements pipeline.Metrics.
type PipelineMetrics struct {
	submitted     metric.Int64Counter
	finished      metric.Int64Counter
	stageDuration metric.Float64Histogram
}

// NewPipelineMetrics registers the pipeline instruments.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	submitted, err := meter.Int64Counter("pipeline.tasks.submitted",
		metric.WithDescription("Tasks accepted for execution"))
	if err != nil {
		return nil, fmt.Errorf("create submitted counter: %w", err)
	}
	finished, err := meter.Int64Counter("pipeline.tasks.finished",
		metric.WithDescription("Tasks that reached a terminal status"))
	if err != nil {
		return nil, fmt.Errorf("create finished counter: %w", err)
	}
	stageDuration, err := meter.Float64Histogram("pipeline.stage.duration",
		metric.WithDescription("Wall time per stage including retries"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create stage duration histogram: %w", err)
	}
	return &PipelineMetrics{
		submitted:     submitted,
		finished:      finished,
		stageDuration: stageDuration,
	}, nil
}

func (m *PipelineMetrics) TaskSubmitted(ctx context.Context) {
	m.submitted.Add(ctx, 1)
}

func (m *PipelineMetrics) TaskFinished(ctx context.Context, status pipeline.TaskStatus) {
	m.finished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(status))))
}

func (m *PipelineMetrics) StageObserved(ctx context.Context, stage pipeline.Stage, duration time.Duration, success bool) {
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.Bool("success", success)))
}
