package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/adaa/pkg/database"
	"github.com/codeready-toolchain/adaa/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health.
// Only ADAA's own components (database, worker_pool) are checked. The query
// model is an optional collaborator; its failures show up as warnings.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy
	resp := &HealthResponse{Version: version.GitCommit}

	if s.dbClient != nil {
		dbHealth, err := database.Health(reqCtx, s.dbClient)
		resp.Database = dbHealth
		if err != nil {
			status = healthStatusUnhealthy
			checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		} else {
			checks["database"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if s.workerPool != nil {
		poolHealth := s.workerPool.Health(reqCtx)
		resp.WorkerPool = poolHealth
		if poolHealth != nil && !poolHealth.IsHealthy {
			if status == healthStatusHealthy {
				status = healthStatusDegraded
			}
			msg := healthStatusUnhealthy
			if poolHealth.DBError != "" {
				msg = poolHealth.DBError
			}
			checks["worker_pool"] = HealthCheck{Status: healthStatusDegraded, Message: msg}
		} else {
			checks["worker_pool"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if s.warningService != nil {
		resp.Warnings = s.warningService.GetWarnings()
	}

	stats := s.cfg.Stats()
	resp.Configuration = ConfigurationStats{
		StorageDriver: stats.StorageDriver,
		Workers:       stats.Workers,
		LLMEnabled:    stats.LLMEnabled,
		SlackEnabled:  stats.SlackEnabled,
		Tracing:       stats.Tracing,
	}
	resp.Status = status
	resp.Checks = checks

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, resp)
}
