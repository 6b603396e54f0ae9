// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/adaa/pkg/blob"
	"github.com/codeready-toolchain/adaa/pkg/config"
)

// JobPurger deletes expired job records. Implemented by services.JobService.
type JobPurger interface {
	DeleteExpiredJobs(ctx context.Context, retentionDays int) ([]string, error)
}

// Service periodically enforces the retention policy: finished jobs older
// than the retention window are deleted together with their dataset and
// chart blobs.
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config *config.RetentionConfig
	jobs   JobPurger
	blobs  blob.Store

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, jobs JobPurger, blobs blob.Store) *Service {
	return &Service{
		config: cfg,
		jobs:   jobs,
		blobs:  blobs,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"job_retention_days", s.config.JobRetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	ids, err := s.jobs.DeleteExpiredJobs(ctx, s.config.JobRetentionDays)
	if err != nil {
		slog.Error("Retention: deleting expired jobs failed", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	slog.Info("Retention: deleted expired jobs", "count", len(ids))
	s.deleteBlobs(ctx, ids)
}

// deleteBlobs removes the datasets and charts of deleted jobs. A failure is
// logged and leaves the remaining tasks to be processed.
func (s *Service) deleteBlobs(ctx context.Context, taskIDs []string) {
	for _, id := range taskIDs {
		for _, prefix := range blob.TaskPrefixes(id) {
			if err := s.blobs.DeletePrefix(ctx, prefix); err != nil {
				slog.Warn("Retention: blob cleanup failed",
					"task_id", id, "prefix", prefix, "error", err)
			}
		}
	}
}
