package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// StageCall is one collaborator invocation. The context carries the
// per-attempt timeout.
type StageCall func(ctx context.Context) error

// StageResult is the outcome of running one stage through the retry
// loop. Err is nil on success.
type StageResult struct {
	Stage     Stage
	Attempts  int
	StartTime time.Time
	EndTime   time.Time
	Err       *StageFailure
}

// Duration returns the wall time the stage took across all attempts.
func (r StageResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Reason maps the failure to a task failure reason.
func (r StageResult) Reason() FailureReason {
	if r.Err != nil && r.Err.Retryable {
		return ReasonStageExhausted
	}
	return ReasonStagePermanentFailure
}

// Runner executes stage calls with per-attempt timeouts, retrying
// transient failures with exponential backoff. Permanent failures
// abort on the first attempt.
type Runner struct {
	retry   RetryConfig
	timeout func(Stage) time.Duration
	logger  *slog.Logger
}

// NewRunner creates a runner with the given retry policy and stage
// timeout lookup.
func NewRunner(retry RetryConfig, timeout func(Stage) time.Duration, logger *slog.Logger) *Runner {
	if retry.MaxAttempts <= 0 {
		retry = NewRetryConfig()
	}
	if timeout == nil {
		timeout = func(Stage) time.Duration { return DefaultAnalyzeTimeout }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{retry: retry, timeout: timeout, logger: logger}
}

// Run executes call for the given stage until it succeeds, fails
// permanently, or exhausts the attempt budget. Raw collaborator
// errors never escape: the result carries a classified StageFailure.
func (r *Runner) Run(ctx context.Context, stage Stage, call StageCall) StageResult {
	result := StageResult{Stage: stage, StartTime: time.Now()}
	var lastErr error

	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		result.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout(stage))
		err := call(attemptCtx)
		cancel()

		if err == nil {
			result.EndTime = time.Now()
			return result
		}
		lastErr = err

		// Shutdown of the parent context is not a stage failure to
		// classify; stop without consuming further attempts.
		if ctx.Err() != nil {
			break
		}

		if !IsTransient(err) {
			r.logger.WarnContext(ctx, "stage failed permanently",
				slog.String("stage", string(stage)),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			result.EndTime = time.Now()
			result.Err = asStageFailure(stage, err, false)
			return result
		}

		if attempt < r.retry.MaxAttempts {
			delay := r.backoff(attempt)
			r.logger.InfoContext(ctx, "stage attempt failed, retrying",
				slog.String("stage", string(stage)),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				result.EndTime = time.Now()
				result.Err = asStageFailure(stage, lastErr, true)
				return result
			}
		}
	}

	r.logger.WarnContext(ctx, "stage exhausted retry budget",
		slog.String("stage", string(stage)),
		slog.Int("attempts", result.Attempts),
		slog.String("error", lastErr.Error()))
	result.EndTime = time.Now()
	result.Err = asStageFailure(stage, lastErr, true)
	return result
}

// backoff computes the delay before the next attempt.
func (r *Runner) backoff(attempt int) time.Duration {
	delay := r.retry.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * r.retry.Multiplier)
		if delay >= r.retry.MaxDelay {
			return r.retry.MaxDelay
		}
	}
	if delay > r.retry.MaxDelay {
		delay = r.retry.MaxDelay
	}
	return delay
}

// asStageFailure attaches the stage to an already classified failure
// or wraps an unclassified error with the given retryability.
func asStageFailure(stage Stage, err error, retryable bool) *StageFailure {
	var sf *StageFailure
	if errors.As(err, &sf) {
		return &StageFailure{Stage: stage, Retryable: sf.Retryable, Err: sf.Err}
	}
	return &StageFailure{Stage: stage, Retryable: retryable, Err: err}
}
