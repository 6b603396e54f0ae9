package api

import (
	"github.com/codeready-toolchain/adaa/pkg/agent/orchestrator"
	"github.com/codeready-toolchain/adaa/pkg/database"
	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/pkg/queue"
	"github.com/codeready-toolchain/adaa/pkg/services"
)

// SubmitResponse is returned by POST /api/v1/analyses.
type SubmitResponse struct {
	TaskID   string           `json:"task_id"`
	Status   models.JobStatus `json:"status"`
	Filename string           `json:"filename"`
	Message  string           `json:"message"`
}

// AnalysisListResponse is returned by GET /api/v1/analyses.
type AnalysisListResponse struct {
	Analyses []*models.Job `json:"analyses"`
}

// CancelResponse is returned by POST /api/v1/analyses/:task_id/cancel.
type CancelResponse struct {
	TaskID  string           `json:"task_id"`
	Status  models.JobStatus `json:"status"`
	Message string           `json:"message"`
}

// AgentsResponse is returned by GET /api/v1/agents.
type AgentsResponse struct {
	Agents []orchestrator.StageInfo `json:"agents"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string                    `json:"status"`
	Version       string                    `json:"version"`
	Checks        map[string]HealthCheck    `json:"checks"`
	Database      *database.HealthStatus    `json:"database,omitempty"`
	Configuration ConfigurationStats        `json:"configuration"`
	WorkerPool    *queue.PoolHealth         `json:"worker_pool,omitempty"`
	Warnings      []*services.SystemWarning `json:"warnings,omitempty"`
}

// HealthCheck is the result of one component check.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ConfigurationStats summarizes the loaded configuration.
type ConfigurationStats struct {
	StorageDriver string `json:"storage_driver"`
	Workers       int    `json:"workers"`
	LLMEnabled    bool   `json:"llm_enabled"`
	SlackEnabled  bool   `json:"slack_enabled"`
	Tracing       bool   `json:"tracing"`
}

// SystemWarningsResponse is returned by GET /api/v1/system/warnings.
type SystemWarningsResponse struct {
	Warnings []SystemWarningItem `json:"warnings"`
}

// SystemWarningItem is a single system warning.
type SystemWarningItem struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Details   string `json:"details"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"created_at"`
}
