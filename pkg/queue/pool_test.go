package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/pkg/services"
)

func TestPoolRegisterAndCancelJob(t *testing.T) {
	pool := &WorkerPool{
		activeJobs: make(map[string]context.CancelFunc),
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool.RegisterJob("task-1", cancel)

	assert.True(t, pool.CancelJob("task-1"))
	assert.Error(t, ctx.Err())

	assert.False(t, pool.CancelJob("unknown"))
}

func TestPoolUnregisterJob(t *testing.T) {
	pool := &WorkerPool{
		activeJobs: make(map[string]context.CancelFunc),
	}

	_, cancel := context.WithCancel(context.Background())
	pool.RegisterJob("task-1", cancel)
	assert.True(t, pool.CancelJob("task-1"))

	pool.UnregisterJob("task-1")

	assert.False(t, pool.CancelJob("task-1"))
}

func TestPoolGetActiveTaskIDs(t *testing.T) {
	pool := &WorkerPool{
		activeJobs: make(map[string]context.CancelFunc),
	}
	assert.Empty(t, pool.getActiveTaskIDs())

	_, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	_, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	pool.RegisterJob("task-a", cancel1)
	pool.RegisterJob("task-b", cancel2)

	ids := pool.getActiveTaskIDs()
	require.Len(t, ids, 2)
	assert.ElementsMatch(t, []string{"task-a", "task-b"}, ids)
}

func TestPoolStopTwiceDoesNotPanic(t *testing.T) {
	pool := &WorkerPool{
		stopCh:     make(chan struct{}),
		activeJobs: make(map[string]context.CancelFunc),
	}

	pool.Stop()

	assert.NotPanics(t, func() { pool.Stop() })
}

func TestPoolProcessesQueuedJobs(t *testing.T) {
	cfg := testQueueConfig()
	cfg.WorkerCount = 2
	cfg.PollInterval = 10 * time.Millisecond
	cfg.PollIntervalJitter = 0

	store := newFakeStore(
		&models.Job{TaskID: "task-1", Filename: "a.csv"},
		&models.Job{TaskID: "task-2", Filename: "b.csv"},
		&models.Job{TaskID: "task-3", Filename: "c.csv"},
	)
	exec := funcExecutor(func(_ context.Context, _ *models.Job) *ExecutionResult {
		return &ExecutionResult{Status: models.JobCompleted, Result: &models.AnalysisResult{Status: models.AnalysisCompleted}}
	})
	pool := NewWorkerPool("pod-1", cfg, WorkerDeps{Store: store, Executor: exec}, nil)

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Start(context.Background()), "second Start is a no-op")
	defer pool.Stop()

	require.Eventually(t, func() bool {
		for _, id := range []string{"task-1", "task-2", "task-3"} {
			if _, ok := store.completion(id); !ok {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	health := pool.Health(context.Background())
	assert.True(t, health.IsHealthy)
	assert.Equal(t, 2, health.TotalWorkers)
	assert.Equal(t, 0, health.QueueDepth)
	assert.Equal(t, "pod-1", health.PodID)
}

func TestPoolHealthReportsStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.countErr = errors.New("connection refused")
	pool := NewWorkerPool("pod-1", testQueueConfig(), WorkerDeps{Store: store}, nil)

	health := pool.Health(context.Background())

	assert.False(t, health.IsHealthy)
	assert.False(t, health.DBReachable)
	assert.Contains(t, health.DBError, "connection refused")
}

func TestPoolOrphanDetection(t *testing.T) {
	store := newFakeStore()
	store.orphans = 2
	warnings := services.NewSystemWarningsService()
	pool := NewWorkerPool("pod-1", testQueueConfig(), WorkerDeps{Store: store}, warnings)

	require.NoError(t, pool.detectAndRecoverOrphans(context.Background()))

	health := pool.Health(context.Background())
	assert.Equal(t, 2, health.OrphansRecovered)
	assert.False(t, health.LastOrphanScan.IsZero())

	got := warnings.GetWarnings()
	require.Len(t, got, 1)
	assert.Equal(t, services.WarningCategoryOrphanedJob, got[0].Category)
	assert.Contains(t, got[0].Message, "2 analysis job(s)")

	// A clean scan adds nothing.
	require.NoError(t, pool.detectAndRecoverOrphans(context.Background()))
	assert.Equal(t, 2, pool.Health(context.Background()).OrphansRecovered)
	assert.Len(t, warnings.GetWarnings(), 1)
}

func TestCleanupStartupOrphans(t *testing.T) {
	store := newFakeStore()
	store.podJobs["pod-1"] = 3

	require.NoError(t, CleanupStartupOrphans(context.Background(), store, "pod-1"))
	assert.Empty(t, store.podJobs)

	require.NoError(t, CleanupStartupOrphans(context.Background(), store, "pod-2"))
}
