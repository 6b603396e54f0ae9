package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/adaa/pkg/services"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically fails jobs that have been running longer
// than the orphan threshold. Every pod runs it; the update is idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("Orphan detection failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans marks stale running jobs failed and raises a
// system warning when any were found.
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	recovered, err := p.deps.Store.FailOrphanedJobs(ctx, p.config.OrphanThreshold)
	if err != nil {
		return fmt.Errorf("failed to fail orphaned jobs: %w", err)
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()

	if recovered == 0 {
		return nil
	}

	slog.Warn("Orphaned jobs marked as failed", "count", recovered, "threshold", p.config.OrphanThreshold)
	if p.warnings != nil {
		p.warnings.AddWarning(services.WarningCategoryOrphanedJob,
			fmt.Sprintf("%d analysis job(s) exceeded %v without finishing and were marked failed", recovered, p.config.OrphanThreshold),
			"", p.podID)
	}
	return nil
}

// CleanupStartupOrphans fails jobs this pod left running when it previously
// stopped. Called once during startup, before the worker pool begins processing.
func CleanupStartupOrphans(ctx context.Context, store JobStore, podID string) error {
	n, err := store.FailPodJobs(ctx, podID)
	if err != nil {
		return fmt.Errorf("failed to clean up startup orphans: %w", err)
	}
	if n > 0 {
		slog.Warn("Startup orphans from previous run marked as failed",
			"pod_id", podID,
			"count", n)
	}
	return nil
}
