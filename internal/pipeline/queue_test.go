package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentpipe/internal/pipeline"
	"contentpipe/pkg/contracts/domain"
)

func waitForStatus(t *testing.T, store *pipeline.Store, id string, want pipeline.TaskStatus) *pipeline.TaskRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.Get(id)
		require.NoError(t, err)
		if got.Status == want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, err := store.Get(id)
	require.NoError(t, err)
	t.Fatalf("task %s never reached %s, last status %s", id, want, got.Status)
	return nil
}

func TestQueue_ExecutesSubmittedTasks(t *testing.T) {
	h := newHarness()
	q := pipeline.NewQueue(2, 4, h.orch, h.store, nil)
	q.Start(context.Background())
	defer q.Stop(time.Second)

	task := h.submit(pipeline.TaskRequest{
		Stages: []pipeline.Stage{pipeline.StageExtract},
		URL:    "https://example.com/post",
	})
	require.NoError(t, q.Enqueue(task.ID))

	got := waitForStatus(t, h.store, task.ID, pipeline.StatusCompleted)
	assert.NotNil(t, got.Outputs.Content)
}

func TestQueue_EnqueueBeforeStart(t *testing.T) {
	h := newHarness()
	q := pipeline.NewQueue(1, 1, h.orch, h.store, nil)
	err := q.Enqueue("any")
	assert.ErrorIs(t, err, pipeline.ErrQueueStopped)
}

func TestQueue_BackpressureWhenFull(t *testing.T) {
	h := newHarness()
	release := make(chan struct{})
	started := make(chan struct{})
	h.extractor.fn = func(ctx context.Context, req pipeline.ExtractRequest) (*domain.ExtractedContent, error) {
		started <- struct{}{}
		<-release
		return testContent(req.URL), nil
	}

	q := pipeline.NewQueue(1, 1, h.orch, h.store, nil)
	q.Start(context.Background())
	defer func() {
		close(release)
		q.Stop(2 * time.Second)
	}()

	running := h.submit(pipeline.TaskRequest{Stages: []pipeline.Stage{pipeline.StageExtract}, URL: "https://example.com/a"})
	require.NoError(t, q.Enqueue(running.ID))
	<-started // worker is busy, buffer is empty again

	buffered := h.submit(pipeline.TaskRequest{Stages: []pipeline.Stage{pipeline.StageExtract}, URL: "https://example.com/b"})
	require.NoError(t, q.Enqueue(buffered.ID))

	rejected := h.submit(pipeline.TaskRequest{Stages: []pipeline.Stage{pipeline.StageExtract}, URL: "https://example.com/c"})
	assert.ErrorIs(t, q.Enqueue(rejected.ID), pipeline.ErrQueueFull)
}

func TestQueue_StopCancelsQueuedAndInFlight(t *testing.T) {
	h := newHarness()
	started := make(chan struct{})
	h.extractor.fn = func(ctx context.Context, req pipeline.ExtractRequest) (*domain.ExtractedContent, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	q := pipeline.NewQueue(1, 2, h.orch, h.store, nil)
	q.Start(context.Background())

	running := h.submit(pipeline.TaskRequest{Stages: allStages(), URL: "https://example.com/a"})
	require.NoError(t, q.Enqueue(running.ID))
	<-started

	queued := h.submit(pipeline.TaskRequest{Stages: allStages(), URL: "https://example.com/b"})
	require.NoError(t, q.Enqueue(queued.ID))

	q.Stop(50 * time.Millisecond)

	gotRunning, err := h.store.Get(running.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCancelled, gotRunning.Status)

	gotQueued, err := h.store.Get(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCancelled, gotQueued.Status)
	assert.Equal(t, 1, h.extractor.callCount())

	assert.ErrorIs(t, q.Enqueue("late"), pipeline.ErrQueueStopped)
}

func TestQueue_ConcurrentEnqueueDuringStop(t *testing.T) {
	h := newHarness()
	q := pipeline.NewQueue(2, 4, h.orch, h.store, nil)
	q.Start(context.Background())

	// Hammer Enqueue from many goroutines while Stop closes the job
	// channel. A send slipping past the draining check would panic a
	// submitter; every call must instead return cleanly.
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				err := q.Enqueue("task")
				if err != nil {
					assert.True(t,
						errors.Is(err, pipeline.ErrQueueFull) || errors.Is(err, pipeline.ErrQueueStopped),
						"unexpected enqueue error: %v", err)
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Stop(time.Second)
	close(stop)
	wg.Wait()

	assert.ErrorIs(t, q.Enqueue("late"), pipeline.ErrQueueStopped)
}

func TestQueue_PanicMarksTaskFailed(t *testing.T) {
	h := newHarness()
	h.extractor.fn = func(ctx context.Context, req pipeline.ExtractRequest) (*domain.ExtractedContent, error) {
		if req.URL == "https://example.com/bad" {
			panic("collaborator bug")
		}
		return testContent(req.URL), nil
	}

	q := pipeline.NewQueue(1, 4, h.orch, h.store, nil)
	q.Start(context.Background())
	defer q.Stop(time.Second)

	bad := h.submit(pipeline.TaskRequest{Stages: []pipeline.Stage{pipeline.StageExtract}, URL: "https://example.com/bad"})
	require.NoError(t, q.Enqueue(bad.ID))

	gotBad := waitForStatus(t, h.store, bad.ID, pipeline.StatusFailed)
	require.NotNil(t, gotBad.Error)
	assert.Contains(t, gotBad.Error.Message, "internal panic")

	// The worker that recovered keeps serving the pool.
	good := h.submit(pipeline.TaskRequest{Stages: []pipeline.Stage{pipeline.StageExtract}, URL: "https://example.com/good"})
	require.NoError(t, q.Enqueue(good.ID))
	waitForStatus(t, h.store, good.ID, pipeline.StatusCompleted)
}
