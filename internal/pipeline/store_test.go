package pipeline_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentpipe/internal/pipeline"
)

func newTestRequest() pipeline.TaskRequest {
	return pipeline.TaskRequest{
		Stages: []pipeline.Stage{pipeline.StageExtract, pipeline.StageAnalyze},
		URL:    "https://example.com/article",
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	store := pipeline.NewStore()
	task := pipeline.NewTask(newTestRequest())

	require.NoError(t, store.Create(task))

	got, err := store.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, pipeline.StatusPending, got.Status)
	assert.Equal(t, "https://example.com/article", got.Request.URL)
}

func TestStore_CreateDuplicate(t *testing.T) {
	store := pipeline.NewStore()
	task := pipeline.NewTask(newTestRequest())

	require.NoError(t, store.Create(task))
	assert.ErrorIs(t, store.Create(task), pipeline.ErrTaskExists)
}

func TestStore_GetUnknown(t *testing.T) {
	store := pipeline.NewStore()

	_, err := store.Get("nope")
	assert.ErrorIs(t, err, pipeline.ErrTaskNotFound)
}

func TestStore_GetReturnsSnapshot(t *testing.T) {
	store := pipeline.NewStore()
	task := pipeline.NewTask(newTestRequest())
	require.NoError(t, store.Create(task))

	first, err := store.Get(task.ID)
	require.NoError(t, err)
	first.Status = pipeline.StatusFailed
	first.CompletedStages = append(first.CompletedStages, pipeline.StageExtract)

	second, err := store.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusPending, second.Status)
	assert.Empty(t, second.CompletedStages)
}

func TestStore_Update(t *testing.T) {
	store := pipeline.NewStore()
	task := pipeline.NewTask(newTestRequest())
	require.NoError(t, store.Create(task))

	updated, err := store.Update(task.ID, func(t *pipeline.TaskRecord) {
		t.Status = pipeline.StatusRunning
	})
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusRunning, updated.Status)
	assert.True(t, updated.UpdatedAt.After(task.CreatedAt) || updated.UpdatedAt.Equal(task.CreatedAt))

	_, err = store.Update("missing", func(*pipeline.TaskRecord) {})
	assert.ErrorIs(t, err, pipeline.ErrTaskNotFound)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	store := pipeline.NewStore()
	task := pipeline.NewTask(newTestRequest())
	require.NoError(t, store.Create(task))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(task.ID, func(t *pipeline.TaskRecord) {
				t.CompletedStages = append(t.CompletedStages, pipeline.StageExtract)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(task.ID)
	require.NoError(t, err)
	assert.Len(t, got.CompletedStages, 50)
}

func TestStore_Delete(t *testing.T) {
	store := pipeline.NewStore()
	task := pipeline.NewTask(newTestRequest())
	require.NoError(t, store.Create(task))

	require.NoError(t, store.Delete(task.ID))
	_, err := store.Get(task.ID)
	assert.ErrorIs(t, err, pipeline.ErrTaskNotFound)
	assert.ErrorIs(t, store.Delete(task.ID), pipeline.ErrTaskNotFound)
}

func TestStore_ListFiltersByStatus(t *testing.T) {
	store := pipeline.NewStore()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Create(pipeline.NewTask(newTestRequest())))
	}
	failed := pipeline.NewTask(newTestRequest())
	require.NoError(t, store.Create(failed))
	_, err := store.Update(failed.ID, func(t *pipeline.TaskRecord) {
		t.Status = pipeline.StatusFailed
	})
	require.NoError(t, err)

	assert.Len(t, store.List(""), 4)
	assert.Len(t, store.List(pipeline.StatusPending), 3)
	assert.Len(t, store.List(pipeline.StatusFailed), 1)
	assert.Equal(t, 4, store.Count())
}

func TestStore_CleanupOlderThan(t *testing.T) {
	store := pipeline.NewStore()

	old := pipeline.NewTask(newTestRequest())
	require.NoError(t, store.Create(old))
	_, err := store.Update(old.ID, func(t *pipeline.TaskRecord) {
		t.Status = pipeline.StatusCompleted
		t.CompletedAt = time.Now().Add(-2 * time.Hour)
	})
	require.NoError(t, err)

	fresh := pipeline.NewTask(newTestRequest())
	require.NoError(t, store.Create(fresh))

	running := pipeline.NewTask(newTestRequest())
	require.NoError(t, store.Create(running))
	_, err = store.Update(running.ID, func(t *pipeline.TaskRecord) {
		t.Status = pipeline.StatusRunning
	})
	require.NoError(t, err)

	removed := store.CleanupOlderThan(time.Hour)
	assert.Equal(t, 1, removed)

	_, err = store.Get(old.ID)
	assert.ErrorIs(t, err, pipeline.ErrTaskNotFound)
	_, err = store.Get(fresh.ID)
	assert.NoError(t, err)
	_, err = store.Get(running.ID)
	assert.NoError(t, err)
}
