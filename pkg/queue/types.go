// Package queue claims pending analysis jobs and runs them on a pool of workers.
package queue

import (
	"context"
	"time"

	"github.com/codeready-toolchain/adaa/pkg/models"
)

// JobExecutor runs the analysis of one claimed job.
//
// The executor owns the pipeline run and its event stream. The worker only
// handles claiming, the timeout, the terminal status update and notifications.
type JobExecutor interface {
	Execute(ctx context.Context, job *models.Job) *ExecutionResult
}

// ExecutionResult is the terminal state of one run.
type ExecutionResult struct {
	Status models.JobStatus       // completed, failed, cancelled
	Result *models.AnalysisResult // nil when the pipeline never ran
	Error  error                  // set for failed or cancelled runs
}

// JobStore is the job-record persistence the pool needs.
// Implemented by services.JobService.
type JobStore interface {
	ClaimNextJob(ctx context.Context, podID string) (*models.Job, error)
	CompleteJob(ctx context.Context, taskID string, status models.JobStatus, result []byte, errMsg string) error
	CountJobs(ctx context.Context, status models.JobStatus) (int, error)
	FailOrphanedJobs(ctx context.Context, threshold time.Duration) (int, error)
	FailPodJobs(ctx context.Context, podID string) (int, error)
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveJobs       int            `json:"active_jobs"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"` // "idle" or "working"
	CurrentTaskID string    `json:"current_task_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
