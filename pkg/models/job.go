package models

import (
	"encoding/json"
	"time"
)

// JobStatus is the persisted state of an analysis job.
type JobStatus string

// Job statuses
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the job has finished.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Job is one submitted dataset and, once finished, its analysis result.
type Job struct {
	TaskID      string          `json:"task_id"`
	User        string          `json:"user"`
	Filename    string          `json:"filename"`
	DatasetRef  string          `json:"dataset_ref"`
	Status      JobStatus       `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// CreateJobRequest contains fields for submitting a dataset for analysis.
type CreateJobRequest struct {
	TaskID     string `json:"task_id"`
	User       string `json:"user"`
	Filename   string `json:"filename"`
	DatasetRef string `json:"dataset_ref"`
}

// JobFilters narrows job listings.
type JobFilters struct {
	User   string    `json:"user,omitempty"`
	Status JobStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}
