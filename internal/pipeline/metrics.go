package pipeline

import (
	"context"
	"time"
)

// Metrics receives pipeline lifecycle events. Implementations must
// be safe for concurrent use.
type Metrics interface {
	TaskSubmitted(ctx context.Context)
	TaskFinished(ctx context.Context, status TaskStatus)
	StageObserved(ctx context.Context, stage Stage, duration time.Duration, success bool)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) TaskSubmitted(context.Context)                             {}
func (NopMetrics) TaskFinished(context.Context, TaskStatus)                  {}
func (NopMetrics) StageObserved(context.Context, Stage, time.Duration, bool) {}
