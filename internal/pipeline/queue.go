package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Queue is the bounded worker pool that drives task execution. The
// submission buffer provides backpressure: when it is full, Enqueue
// fails instead of blocking the caller.
type Queue struct {
	orch    *Orchestrator
	store   *Store
	logger  *slog.Logger
	jobs    chan string
	workers int

	mu       sync.Mutex
	started  bool
	draining bool

	wg       sync.WaitGroup
	baseCtx  context.Context
	shutdown context.CancelFunc
}

// NewQueue creates a queue with the given pool size. A queueSize of
// zero defaults to twice the worker count.
func NewQueue(workers, queueSize int, orch *Orchestrator, store *Store, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		orch:    orch,
		store:   store,
		logger:  logger,
		jobs:    make(chan string, queueSize),
		workers: workers,
	}
}

// Start launches the worker pool. It is idempotent.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	q.baseCtx, q.shutdown = context.WithCancel(context.WithoutCancel(ctx))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("task queue started",
		slog.Int("workers", q.workers),
		slog.Int("queue_size", cap(q.jobs)))
}

// Enqueue hands a task to the pool. Returns ErrQueueFull when the
// buffer has no room and ErrQueueStopped after shutdown began. The
// send happens under the mutex that also guards the close in Stop, so
// a submission racing shutdown cannot hit a closed channel.
func (q *Queue) Enqueue(taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started || q.draining {
		return ErrQueueStopped
	}
	select {
	case q.jobs <- taskID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop drains the pool. Queued tasks that have not started are marked
// Cancelled immediately; running tasks get until the timeout to reach
// a stage boundary, after which their context is cancelled and the
// orchestrator records them as Cancelled.
func (q *Queue) Stop(timeout time.Duration) {
	q.mu.Lock()
	if !q.started || q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("task queue drained")
	case <-time.After(timeout):
		q.logger.Warn("task queue drain timed out, cancelling in-flight tasks",
			slog.Duration("timeout", timeout))
		q.shutdown()
		<-done
	}
}

// worker consumes task ids until the job channel closes. Once the
// queue is draining, remaining buffered tasks are cancelled rather
// than started.
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log := q.logger.With(slog.Int("worker", id))

	for taskID := range q.jobs {
		if q.isDraining() {
			q.cancelQueued(taskID)
			continue
		}
		q.process(log, taskID)
	}
}

// process runs one task, converting panics into a Failed record so a
// bad collaborator cannot take a worker down.
func (q *Queue) process(log *slog.Logger, taskID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while executing task",
				slog.String("task_id", taskID),
				slog.Any("panic", r))
			_, _ = q.store.Update(taskID, func(t *TaskRecord) {
				t.finish(StatusFailed, &StageError{
					Reason:  ReasonStagePermanentFailure,
					Message: fmt.Sprintf("internal panic: %v", r),
				})
			})
		}
	}()

	err := q.orch.Execute(q.baseCtx, taskID)
	switch {
	case err == nil:
	case errors.Is(err, ErrTaskFinished), errors.Is(err, ErrTaskNotFound):
		// Cancelled or evicted before a worker got to it.
		log.Debug("task no longer runnable", slog.String("task_id", taskID))
	default:
		log.Warn("task execution rejected",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()))
	}
}

func (q *Queue) cancelQueued(taskID string) {
	_, _ = q.store.Update(taskID, func(t *TaskRecord) {
		t.finish(StatusCancelled, nil)
	})
	q.logger.Info("queued task cancelled by shutdown", slog.String("task_id", taskID))
}

func (q *Queue) isDraining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}
