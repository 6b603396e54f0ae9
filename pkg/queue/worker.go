package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/events"
	"github.com/codeready-toolchain/adaa/pkg/metrics"
	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/pkg/services"
	adaaslack "github.com/codeready-toolchain/adaa/pkg/slack"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// statusPublishTimeout bounds a single job status announcement.
const statusPublishTimeout = 5 * time.Second

// JobRegistry is the subset of WorkerPool used by Worker for cancel registration.
type JobRegistry interface {
	RegisterJob(taskID string, cancel context.CancelFunc)
	UnregisterJob(taskID string)
}

// WorkerDeps are the collaborators shared by every worker of a pool.
// Publisher, Slack and Metrics may be nil.
type WorkerDeps struct {
	Store     JobStore
	Executor  JobExecutor
	Publisher events.Publisher
	Slack     *adaaslack.Service
	Metrics   *metrics.Metrics
}

// Worker is a single queue worker that polls for and processes jobs.
type Worker struct {
	id       string
	podID    string
	config   *config.QueueConfig
	deps     WorkerDeps
	pool     JobRegistry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Health tracking
	mu            sync.RWMutex
	status        WorkerStatus
	currentTaskID string
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a new queue worker.
func NewWorker(id, podID string, cfg *config.QueueConfig, deps WorkerDeps, pool JobRegistry) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		config:       cfg,
		deps:         deps,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentTaskID: w.currentTaskID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, services.ErrNoJobsAvailable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims one pending job and runs it to a terminal state.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	job, err := w.deps.Store.ClaimNextJob(ctx, w.podID)
	if err != nil {
		return err
	}

	log := slog.With("task_id", job.TaskID, "worker_id", w.id)
	log.Info("Job claimed", "filename", job.Filename)

	w.deps.Metrics.JobStarted()
	defer w.deps.Metrics.JobFinished()

	w.publishStatus(ctx, job.TaskID, models.JobRunning, "")
	threadTS := w.deps.Slack.NotifyAnalysisStarted(ctx, adaaslack.AnalysisStartedInput{
		TaskID:   job.TaskID,
		Filename: job.Filename,
	})

	w.setStatus(WorkerStatusWorking, job.TaskID)
	defer w.setStatus(WorkerStatusIdle, "")

	jobCtx, cancelJob := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancelJob()

	w.pool.RegisterJob(job.TaskID, cancelJob)
	defer w.pool.UnregisterJob(job.TaskID)

	result := w.deps.Executor.Execute(jobCtx, job)
	result = w.settle(jobCtx, result)

	// The job context may be cancelled by now; terminal writes use a fresh one.
	status, errMsg := w.complete(context.Background(), job, result)

	w.publishStatus(context.Background(), job.TaskID, status, errMsg)
	w.deps.Slack.NotifyAnalysisCompleted(context.Background(), adaaslack.AnalysisCompletedInput{
		TaskID:       job.TaskID,
		Filename:     job.Filename,
		Status:       string(status),
		Result:       result.Result,
		ErrorMessage: errMsg,
		ThreadTS:     threadTS,
	})

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	log.Info("Job processing complete", "status", status)
	return nil
}

// settle fills in a missing result and turns a deadline-driven stop into a
// failure, keeping whatever sections finished before the deadline.
func (w *Worker) settle(jobCtx context.Context, result *ExecutionResult) *ExecutionResult {
	timedOut := errors.Is(jobCtx.Err(), context.DeadlineExceeded)
	timeoutErr := fmt.Errorf("analysis timed out after %v", w.config.JobTimeout)

	if result == nil {
		switch {
		case timedOut:
			return &ExecutionResult{Status: models.JobFailed, Error: timeoutErr}
		case errors.Is(jobCtx.Err(), context.Canceled):
			return &ExecutionResult{Status: models.JobCancelled, Error: context.Canceled}
		default:
			return &ExecutionResult{Status: models.JobFailed, Error: errors.New("executor returned nil result")}
		}
	}
	if timedOut && result.Status == models.JobCancelled {
		result.Status = models.JobFailed
		result.Error = timeoutErr
	}
	if result.Status == "" {
		result.Status = models.JobFailed
	}
	return result
}

// complete writes the terminal status and returns what was actually stored.
func (w *Worker) complete(ctx context.Context, job *models.Job, result *ExecutionResult) (models.JobStatus, string) {
	log := slog.With("task_id", job.TaskID, "worker_id", w.id)

	status := result.Status
	var errMsg string
	if result.Error != nil {
		errMsg = result.Error.Error()
	}

	var payload []byte
	if result.Result != nil {
		var err error
		payload, err = json.Marshal(result.Result)
		if err != nil {
			log.Error("Failed to marshal analysis result", "error", err)
			status, errMsg, payload = models.JobFailed, fmt.Sprintf("failed to encode result: %v", err), nil
		}
	}

	err := w.deps.Store.CompleteJob(ctx, job.TaskID, status, payload, errMsg)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrResultTooLarge):
		log.Warn("Analysis result rejected", "error", err)
		status, errMsg = models.JobFailed, err.Error()
	default:
		log.Error("Failed to update job terminal status", "error", err)
	}
	return status, errMsg
}

// publishStatus announces a job status change. Failures are logged only.
func (w *Worker) publishStatus(ctx context.Context, taskID string, status models.JobStatus, errMsg string) {
	if w.deps.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, statusPublishTimeout)
	defer cancel()
	if err := events.PublishStatus(ctx, w.deps.Publisher, taskID, status, errMsg); err != nil {
		slog.Warn("Failed to publish job status",
			"task_id", taskID, "status", status, "error", err)
	}
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentTaskID = taskID
	w.lastActivity = time.Now()
}
