package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/pkg/services"
)

func testQueueConfig() *config.QueueConfig {
	return &config.QueueConfig{
		WorkerCount:             2,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		JobTimeout:              time.Minute,
		GracefulShutdownTimeout: time.Minute,
		OrphanDetectionInterval: 5 * time.Minute,
		OrphanThreshold:         30 * time.Minute,
	}
}

func TestWorkerPollInterval(t *testing.T) {
	w := NewWorker("test-worker", "test-pod", testQueueConfig(), WorkerDeps{}, nil)

	for i := 0; i < 100; i++ {
		d := w.pollInterval()
		assert.GreaterOrEqual(t, d, 500*time.Millisecond, "poll interval below minimum")
		assert.LessOrEqual(t, d, 1500*time.Millisecond, "poll interval above maximum")
	}
}

func TestWorkerPollIntervalNoJitter(t *testing.T) {
	cfg := testQueueConfig()
	cfg.PollIntervalJitter = 0
	w := NewWorker("test-worker", "test-pod", cfg, WorkerDeps{}, nil)

	for i := 0; i < 10; i++ {
		assert.Equal(t, 1*time.Second, w.pollInterval())
	}
}

func TestWorkerHealth(t *testing.T) {
	w := NewWorker("worker-1", "pod-1", testQueueConfig(), WorkerDeps{}, nil)

	h := w.Health()
	assert.Equal(t, "worker-1", h.ID)
	assert.Equal(t, "idle", h.Status)
	assert.Empty(t, h.CurrentTaskID)
	assert.Equal(t, 0, h.JobsProcessed)

	w.setStatus(WorkerStatusWorking, "task-abc")
	h = w.Health()
	assert.Equal(t, "working", h.Status)
	assert.Equal(t, "task-abc", h.CurrentTaskID)

	w.setStatus(WorkerStatusIdle, "")
	h = w.Health()
	assert.Equal(t, "idle", h.Status)
	assert.Empty(t, h.CurrentTaskID)
}

func newTestWorker(cfg *config.QueueConfig, store *fakeStore, exec JobExecutor, pub *recordingPublisher) (*Worker, *WorkerPool) {
	deps := WorkerDeps{Store: store, Executor: exec, Publisher: pub}
	pool := NewWorkerPool("pod-1", cfg, deps, nil)
	return NewWorker("worker-1", "pod-1", cfg, deps, pool), pool
}

func TestWorker_NoJobsAvailable(t *testing.T) {
	w, _ := newTestWorker(testQueueConfig(), newFakeStore(), nil, &recordingPublisher{})

	err := w.pollAndProcess(context.Background())

	assert.ErrorIs(t, err, services.ErrNoJobsAvailable)
}

func TestWorker_CompletesJob(t *testing.T) {
	store := newFakeStore(&models.Job{TaskID: "task-1", Filename: "sales.csv"})
	pub := &recordingPublisher{}
	exec := funcExecutor(func(_ context.Context, job *models.Job) *ExecutionResult {
		return &ExecutionResult{
			Status: models.JobCompleted,
			Result: &models.AnalysisResult{TaskID: job.TaskID, Status: models.AnalysisCompleted},
		}
	})
	w, _ := newTestWorker(testQueueConfig(), store, exec, pub)

	require.NoError(t, w.pollAndProcess(context.Background()))

	c, ok := store.completion("task-1")
	require.True(t, ok)
	assert.Equal(t, models.JobCompleted, c.status)
	assert.Empty(t, c.errMsg)

	var stored models.AnalysisResult
	require.NoError(t, json.Unmarshal(c.result, &stored))
	assert.Equal(t, "task-1", stored.TaskID)

	assert.Equal(t, []models.JobStatus{models.JobRunning, models.JobCompleted}, pub.recorded())
	assert.Equal(t, 1, w.Health().JobsProcessed)
	assert.Equal(t, "idle", w.Health().Status)
}

func TestWorker_CancelThroughRegistry(t *testing.T) {
	store := newFakeStore(&models.Job{TaskID: "task-1"})
	entered := make(chan struct{})
	exec := funcExecutor(func(ctx context.Context, _ *models.Job) *ExecutionResult {
		close(entered)
		<-ctx.Done()
		return &ExecutionResult{Status: models.JobCancelled, Error: ctx.Err()}
	})
	pub := &recordingPublisher{}
	w, pool := newTestWorker(testQueueConfig(), store, exec, pub)

	done := make(chan error, 1)
	go func() { done <- w.pollAndProcess(context.Background()) }()

	<-entered
	assert.Equal(t, "task-1", w.Health().CurrentTaskID)
	require.True(t, pool.CancelJob("task-1"))
	require.NoError(t, <-done)

	c, ok := store.completion("task-1")
	require.True(t, ok)
	assert.Equal(t, models.JobCancelled, c.status)
	assert.False(t, pool.CancelJob("task-1"), "registry entry removed after the run")
	assert.Equal(t, []models.JobStatus{models.JobRunning, models.JobCancelled}, pub.recorded())
}

func TestWorker_TimeoutFailsJobAndKeepsPartialResult(t *testing.T) {
	cfg := testQueueConfig()
	cfg.JobTimeout = 20 * time.Millisecond
	store := newFakeStore(&models.Job{TaskID: "task-1"})
	exec := funcExecutor(func(ctx context.Context, job *models.Job) *ExecutionResult {
		<-ctx.Done()
		return &ExecutionResult{
			Status: models.JobCancelled,
			Result: &models.AnalysisResult{TaskID: job.TaskID, Status: models.AnalysisCancelled},
			Error:  ctx.Err(),
		}
	})
	w, _ := newTestWorker(cfg, store, exec, &recordingPublisher{})

	require.NoError(t, w.pollAndProcess(context.Background()))

	c, ok := store.completion("task-1")
	require.True(t, ok)
	assert.Equal(t, models.JobFailed, c.status)
	assert.Contains(t, c.errMsg, "timed out after 20ms")
	assert.NotEmpty(t, c.result)
}

func TestWorker_NilResult(t *testing.T) {
	store := newFakeStore(&models.Job{TaskID: "task-1"})
	exec := funcExecutor(func(context.Context, *models.Job) *ExecutionResult { return nil })
	w, _ := newTestWorker(testQueueConfig(), store, exec, &recordingPublisher{})

	require.NoError(t, w.pollAndProcess(context.Background()))

	c, ok := store.completion("task-1")
	require.True(t, ok)
	assert.Equal(t, models.JobFailed, c.status)
	assert.Equal(t, "executor returned nil result", c.errMsg)
}

func TestWorker_ResultTooLargeReportsFailure(t *testing.T) {
	store := newFakeStore(&models.Job{TaskID: "task-1"})
	store.completeErr = fmt.Errorf("%w: analysis result is 100 bytes, limit is 10", services.ErrResultTooLarge)
	exec := funcExecutor(func(context.Context, *models.Job) *ExecutionResult {
		return &ExecutionResult{Status: models.JobCompleted, Result: &models.AnalysisResult{Status: models.AnalysisCompleted}}
	})
	pub := &recordingPublisher{}
	w, _ := newTestWorker(testQueueConfig(), store, exec, pub)

	require.NoError(t, w.pollAndProcess(context.Background()))

	assert.Equal(t, []models.JobStatus{models.JobRunning, models.JobFailed}, pub.recorded())
}

func TestWorker_StopEndsLoop(t *testing.T) {
	cfg := testQueueConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.PollIntervalJitter = 0
	w, _ := newTestWorker(cfg, newFakeStore(), nil, &recordingPublisher{})

	w.Start(context.Background())
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.NotPanics(t, w.Stop)
}
