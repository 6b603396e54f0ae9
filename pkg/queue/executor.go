package queue

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/adaa/pkg/agent/orchestrator"
	"github.com/codeready-toolchain/adaa/pkg/blob"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/events"
	"github.com/codeready-toolchain/adaa/pkg/metrics"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

// bridgeDrainTimeout bounds how long a finished run waits for its queued
// activity events to be published.
const bridgeDrainTimeout = 10 * time.Second

// ExecutorDeps are the collaborators of an AnalysisExecutor.
type ExecutorDeps struct {
	Analysis  *config.AnalysisConfig
	Stream    *config.StreamConfig
	Store     blob.Store
	Publisher events.Publisher
	Metrics   *metrics.Metrics
}

// AnalysisExecutor loads a job's dataset from the blob store and runs the
// full pipeline on a fresh orchestrator, streaming activity events through
// an event bridge.
type AnalysisExecutor struct {
	deps   ExecutorDeps
	logger *slog.Logger
}

// NewAnalysisExecutor creates an executor.
func NewAnalysisExecutor(deps ExecutorDeps) *AnalysisExecutor {
	if deps.Analysis == nil {
		deps.Analysis = config.DefaultAnalysisConfig()
	}
	if deps.Stream == nil {
		deps.Stream = config.DefaultStreamConfig()
	}
	return &AnalysisExecutor{
		deps:   deps,
		logger: slog.Default().With("component", "analysis-executor"),
	}
}

// Execute runs the analysis for job. A dataset that cannot be loaded fails
// the job without running any stage.
func (e *AnalysisExecutor) Execute(ctx context.Context, job *models.Job) *ExecutionResult {
	log := e.logger.With("task_id", job.TaskID)

	ds, err := e.loadDataset(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			return &ExecutionResult{Status: models.JobCancelled, Error: ctx.Err()}
		}
		log.Warn("Failed to load dataset", "dataset_ref", job.DatasetRef, "error", err)
		return &ExecutionResult{Status: models.JobFailed, Error: err}
	}

	bridge := events.NewBridge(e.deps.Publisher, e.deps.Stream.EventQueueSize, e.deps.Metrics)
	orch := orchestrator.New(orchestrator.Deps{
		Config:  e.deps.Analysis,
		Store:   e.deps.Store,
		OnEvent: bridge.Emit,
		Metrics: e.deps.Metrics,
	})
	result := orch.Run(ctx, job.TaskID, ds)

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bridgeDrainTimeout)
	defer cancel()
	if err := bridge.Close(drainCtx); err != nil {
		log.Warn("Activity events still queued after run", "error", err)
	}

	return resultFromAnalysis(result)
}

func (e *AnalysisExecutor) loadDataset(ctx context.Context, job *models.Job) (*dataset.Dataset, error) {
	data, err := e.deps.Store.Get(ctx, job.DatasetRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %q: %w", job.DatasetRef, err)
	}
	ds, err := dataset.ReadCSV(bytes.NewReader(data), job.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset %q: %w", job.Filename, err)
	}
	return ds, nil
}

// resultFromAnalysis maps the pipeline outcome onto a job status.
func resultFromAnalysis(r *models.AnalysisResult) *ExecutionResult {
	out := &ExecutionResult{Result: r}
	switch r.Status {
	case models.AnalysisCompleted:
		out.Status = models.JobCompleted
	case models.AnalysisCancelled:
		out.Status = models.JobCancelled
		out.Error = context.Canceled
	default:
		out.Status = models.JobFailed
		out.Error = fmt.Errorf("all %d stages failed", r.Summary.TotalAgents)
	}
	return out
}
