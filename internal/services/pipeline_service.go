package services

import (
	"context"
	"log/slog"
	"time"

	"contentpipe/internal/pipeline"
)

// PipelineService is the application-facing surface of the task
// engine: submit, query, cancel, evict.
type PipelineService struct {
	store          *pipeline.Store
	queue          *pipeline.Queue
	metrics        pipeline.Metrics
	publishEnabled bool
	retention      time.Duration
	logger         *slog.Logger
}

// NewPipelineService creates the service.
func NewPipelineService(store *pipeline.Store, queue *pipeline.Queue, metrics pipeline.Metrics, publishEnabled bool, retention time.Duration, logger *slog.Logger) *PipelineService {
	if metrics == nil {
		metrics = pipeline.NopMetrics{}
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{
		store:          store,
		queue:          queue,
		metrics:        metrics,
		publishEnabled: publishEnabled,
		retention:      retention,
		logger:         logger,
	}
}

// Submit validates the request, stores a Pending task and hands it to
// the worker pool. Validation failures and queue backpressure reject
// the submission without leaving a task behind.
func (s *PipelineService) Submit(ctx context.Context, req pipeline.TaskRequest) (*pipeline.TaskRecord, error) {
	if err := pipeline.ValidateRequest(&req); err != nil {
		return nil, err
	}
	if req.HasStage(pipeline.StagePublish) && !s.publishEnabled {
		return nil, &pipeline.ValidationError{
			Field:   "stages",
			Message: "publishing is not configured on this server",
		}
	}

	task := pipeline.NewTask(req)
	if err := s.store.Create(task); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(task.ID); err != nil {
		_ = s.store.Delete(task.ID)
		return nil, err
	}
	s.metrics.TaskSubmitted(ctx)
	s.logger.InfoContext(ctx, "task submitted",
		slog.String("task_id", task.ID),
		slog.Any("stages", req.Stages))
	return task, nil
}

// Status returns a snapshot of the task.
func (s *PipelineService) Status(ctx context.Context, taskID string) (*pipeline.TaskRecord, error) {
	return s.store.Get(taskID)
}

// Result returns the task once it has reached a terminal status;
// before that it reports ErrTaskNotReady.
func (s *PipelineService) Result(ctx context.Context, taskID string) (*pipeline.TaskRecord, error) {
	task, err := s.store.Get(taskID)
	if err != nil {
		return nil, err
	}
	if !task.Status.IsTerminal() {
		return nil, pipeline.ErrTaskNotReady
	}
	return task, nil
}

// Cancel requests cancellation and returns the status the task held
// when the request landed. Pending tasks are cancelled on the spot;
// Running tasks stop at the next stage boundary; terminal tasks are
// left untouched.
func (s *PipelineService) Cancel(ctx context.Context, taskID string) (pipeline.TaskStatus, error) {
	var previous pipeline.TaskStatus
	_, err := s.store.Update(taskID, func(t *pipeline.TaskRecord) {
		previous = t.Status
		if t.Status.IsTerminal() {
			return
		}
		t.CancelRequested = true
		if t.Status == pipeline.StatusPending {
			t.Status = pipeline.StatusCancelled
			t.CompletedAt = time.Now()
		}
	})
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "cancellation requested",
		slog.String("task_id", taskID),
		slog.String("previous_status", string(previous)))
	return previous, nil
}

// Delete evicts a terminal task from the store.
func (s *PipelineService) Delete(ctx context.Context, taskID string) error {
	task, err := s.store.Get(taskID)
	if err != nil {
		return err
	}
	if !task.Status.IsTerminal() {
		return pipeline.ErrTaskActive
	}
	return s.store.Delete(taskID)
}

// List returns task snapshots, optionally filtered by status.
func (s *PipelineService) List(ctx context.Context, status pipeline.TaskStatus) []*pipeline.TaskRecord {
	return s.store.List(status)
}

// RunCleanup evicts stale terminal tasks on the given interval until
// the context ends.
func (s *PipelineService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.store.CleanupOlderThan(s.retention); removed > 0 {
				s.logger.InfoContext(ctx, "evicted stale tasks", slog.Int("count", removed))
			}
		}
	}
}
