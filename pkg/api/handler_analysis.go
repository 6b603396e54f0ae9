package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/agent/orchestrator"
	"github.com/codeready-toolchain/adaa/pkg/blob"
	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/events"
	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/pkg/services"
)

// submitAnalysisHandler handles POST /api/v1/analyses.
// The multipart "file" field must hold a CSV document with a header row.
func (s *Server) submitAnalysisHandler(c *gin.Context) {
	if limit := s.cfg.Storage.MaxUploadBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respondError(c, &httpError{Code: http.StatusRequestEntityTooLarge, Message: "file exceeds the upload limit"})
			return
		}
		respondError(c, &httpError{Code: http.StatusBadRequest, Message: "file is required"})
		return
	}

	filename := path.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if !strings.EqualFold(path.Ext(filename), ".csv") {
		respondError(c, &httpError{Code: http.StatusBadRequest, Message: "only CSV files are supported"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, fmt.Errorf("failed to read upload: %w", err))
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		respondError(c, &httpError{Code: http.StatusBadRequest, Message: "file is empty"})
		return
	}
	if _, err := dataset.ReadCSV(bytes.NewReader(data), filename); err != nil {
		respondError(c, &httpError{Code: http.StatusBadRequest, Message: "invalid CSV: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	taskID := uuid.New().String()
	ref := blob.DatasetKey(taskID, filename)
	if err := s.blobs.Put(ctx, ref, data); err != nil {
		respondError(c, fmt.Errorf("failed to store dataset: %w", err))
		return
	}

	job, err := s.jobService.CreateJob(ctx, models.CreateJobRequest{
		TaskID:     taskID,
		User:       currentUser(c),
		Filename:   filename,
		DatasetRef: ref,
	})
	if err != nil {
		if delErr := s.blobs.DeletePrefix(context.WithoutCancel(ctx), path.Dir(ref)); delErr != nil {
			slog.Warn("Failed to remove orphaned upload", "task_id", taskID, "error", delErr)
		}
		respondError(c, err)
		return
	}

	slog.Info("Analysis submitted", "task_id", job.TaskID, "user", job.User, "filename", job.Filename, "bytes", len(data))
	c.JSON(http.StatusAccepted, SubmitResponse{
		TaskID:   job.TaskID,
		Status:   job.Status,
		Filename: job.Filename,
		Message:  "Analysis queued",
	})
}

// listAnalysesHandler handles GET /api/v1/analyses.
// Only the caller's analyses are listed.
func (s *Server) listAnalysesHandler(c *gin.Context) {
	filters := models.JobFilters{User: currentUser(c)}

	if v := c.Query("status"); v != "" {
		status := models.JobStatus(v)
		switch status {
		case models.JobPending, models.JobRunning, models.JobCompleted, models.JobFailed, models.JobCancelled:
			filters.Status = status
		default:
			respondError(c, &httpError{Code: http.StatusBadRequest, Message: "invalid status: " + v})
			return
		}
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(c, &httpError{Code: http.StatusBadRequest, Message: "limit must be a positive integer"})
			return
		}
		filters.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(c, &httpError{Code: http.StatusBadRequest, Message: "offset must be a non-negative integer"})
			return
		}
		filters.Offset = n
	}

	jobs, err := s.jobService.ListJobs(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}
	c.JSON(http.StatusOK, AnalysisListResponse{Analyses: jobs})
}

// getAnalysisHandler handles GET /api/v1/analyses/:task_id.
func (s *Server) getAnalysisHandler(c *gin.Context) {
	job, err := s.jobService.GetOwnedJob(c.Request.Context(), c.Param("task_id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// cancelAnalysisHandler handles POST /api/v1/analyses/:task_id/cancel.
// A pending analysis is cancelled immediately. A running one is cancelled
// through the worker pool when it runs in this process.
func (s *Server) cancelAnalysisHandler(c *gin.Context) {
	ctx := c.Request.Context()
	taskID := c.Param("task_id")

	if _, err := s.jobService.GetOwnedJob(ctx, taskID, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	cancelled, err := s.jobService.CancelJob(ctx, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	if cancelled {
		if s.eventPublisher != nil {
			if err := events.PublishStatus(ctx, s.eventPublisher, taskID, models.JobCancelled, ""); err != nil {
				slog.Warn("Failed to publish cancellation", "task_id", taskID, "error", err)
			}
		}
		c.JSON(http.StatusOK, CancelResponse{TaskID: taskID, Status: models.JobCancelled, Message: "Analysis cancelled"})
		return
	}

	if s.workerPool != nil && s.workerPool.CancelJob(taskID) {
		c.JSON(http.StatusAccepted, CancelResponse{TaskID: taskID, Status: models.JobRunning, Message: "Cancellation requested"})
		return
	}
	respondError(c, &httpError{Code: http.StatusConflict, Message: "analysis is running on another instance"})
}

// listAgentsHandler handles GET /api/v1/agents.
func (s *Server) listAgentsHandler(c *gin.Context) {
	o := orchestrator.New(orchestrator.Deps{Config: s.cfg.Analysis, Store: s.blobs})
	c.JSON(http.StatusOK, AgentsResponse{Agents: o.AvailableStages()})
}

// runStageHandler handles POST /api/v1/analyses/:task_id/agents/:stage.
// The stage is re-run on the stored dataset and the sections of the
// completed analysis; the stored result is replaced with the merged one.
func (s *Server) runStageHandler(c *gin.Context) {
	ctx := c.Request.Context()
	taskID := c.Param("task_id")

	stage, err := agent.ParseStage(c.Param("stage"))
	if err != nil {
		respondError(c, err)
		return
	}
	job, err := s.jobService.GetOwnedJob(ctx, taskID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ds, stored, err := s.loadAnalysis(ctx, job)
	if err != nil {
		respondError(c, err)
		return
	}

	var onEvent agent.EventCallback
	if s.eventPublisher != nil {
		bridge := events.NewBridge(s.eventPublisher, s.cfg.Stream.EventQueueSize, s.metrics)
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = bridge.Close(closeCtx)
		}()
		onEvent = bridge.Emit
	}

	o := orchestrator.New(orchestrator.Deps{
		Config:  s.cfg.Analysis,
		Store:   s.blobs,
		OnEvent: onEvent,
		Metrics: s.metrics,
	})
	rerun, err := o.RunSingle(ctx, stage, agent.FromResult(ds, stored))
	if err != nil {
		respondError(c, err)
		return
	}
	if rerun.Status == models.AnalysisCancelled {
		respondError(c, &httpError{Code: http.StatusServiceUnavailable, Message: "stage run was cancelled"})
		return
	}

	merged := orchestrator.MergeStage(stored, rerun, stage)
	data, err := json.Marshal(merged)
	if err != nil {
		respondError(c, fmt.Errorf("failed to encode result: %w", err))
		return
	}
	if err := s.jobService.ReplaceResult(ctx, taskID, data); err != nil {
		respondError(c, err)
		return
	}
	if s.queryAgent != nil {
		s.queryAgent.Purge(taskID)
	}

	slog.Info("Stage re-run", "task_id", taskID, "stage", stage, "status", rerun.Status)
	c.JSON(http.StatusOK, merged)
}

// loadAnalysis reads the dataset and decoded result of a completed job.
func (s *Server) loadAnalysis(ctx context.Context, job *models.Job) (*dataset.Dataset, *models.AnalysisResult, error) {
	if job.Status != models.JobCompleted || len(job.Result) == 0 {
		return nil, nil, services.ErrJobNotCompleted
	}
	var res models.AnalysisResult
	if err := json.Unmarshal(job.Result, &res); err != nil {
		return nil, nil, fmt.Errorf("failed to decode result: %w", err)
	}
	raw, err := s.blobs.Get(ctx, job.DatasetRef)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	ds, err := dataset.ReadCSV(bytes.NewReader(raw), job.Filename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return ds, &res, nil
}
