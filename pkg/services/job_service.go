package services

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/adaa/pkg/database"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	jobColumns = `task_id, user_id, filename, dataset_ref, status, result, error, created_at, started_at, completed_at`
)

// JobService manages analysis job records.
type JobService struct {
	client         *database.Client
	maxResultBytes int64
	now            func() time.Time
}

// NewJobService creates a JobService. maxResultBytes <= 0 disables the
// result size check.
func NewJobService(client *database.Client, maxResultBytes int64) *JobService {
	return &JobService{
		client:         client,
		maxResultBytes: maxResultBytes,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob records a pending job. A task id is generated when the request has none.
func (s *JobService) CreateJob(ctx context.Context, req models.CreateJobRequest) (*models.Job, error) {
	if strings.TrimSpace(req.User) == "" {
		return nil, NewValidationError("user", "required")
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, NewValidationError("filename", "required")
	}
	if strings.TrimSpace(req.DatasetRef) == "" {
		return nil, NewValidationError("dataset_ref", "required")
	}
	if req.TaskID == "" {
		req.TaskID = uuid.New().String()
	}

	job := &models.Job{
		TaskID:     req.TaskID,
		User:       req.User,
		Filename:   req.Filename,
		DatasetRef: req.DatasetRef,
		Status:     models.JobPending,
		CreatedAt:  s.now(),
	}
	_, err := s.client.DB().ExecContext(ctx, s.client.Rebind(
		`INSERT INTO analysis_jobs (task_id, user_id, filename, dataset_ref, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		job.TaskID, job.User, job.Filename, job.DatasetRef, string(job.Status), job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// GetJob returns a job by task id.
func (s *JobService) GetJob(ctx context.Context, taskID string) (*models.Job, error) {
	row := s.client.DB().QueryRowContext(ctx, s.client.Rebind(
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE task_id = ?`), taskID)
	job, err := scanJob(row)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// GetOwnedJob returns a job only if it belongs to user.
func (s *JobService) GetOwnedJob(ctx context.Context, taskID, user string) (*models.Job, error) {
	job, err := s.GetJob(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if job.User != user {
		return nil, ErrNotOwner
	}
	return job, nil
}

// ListJobs returns jobs newest first. Results are omitted from listings.
func (s *JobService) ListJobs(ctx context.Context, filters models.JobFilters) ([]*models.Job, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := max(filters.Offset, 0)

	var (
		where []string
		args  []any
	)
	if filters.User != "" {
		where = append(where, "user_id = ?")
		args = append(args, filters.User)
	}
	if filters.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filters.Status))
	}
	query := `SELECT task_id, user_id, filename, dataset_ref, status, NULL, error, created_at, started_at, completed_at
		FROM analysis_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, task_id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.client.DB().QueryContext(ctx, s.client.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// CountJobs returns how many jobs have the given status.
func (s *JobService) CountJobs(ctx context.Context, status models.JobStatus) (int, error) {
	var n int
	err := s.client.DB().QueryRowContext(ctx, s.client.Rebind(
		`SELECT COUNT(*) FROM analysis_jobs WHERE status = ?`), string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return n, nil
}

// ClaimNextJob atomically moves the oldest pending job to running and
// records the claiming pod. Each job is claimed at most once.
func (s *JobService) ClaimNextJob(ctx context.Context, podID string) (*models.Job, error) {
	// SQLite serializes writers, so the row lock is Postgres-only.
	lock := ""
	if s.client.Dialect() == database.DialectPostgres {
		lock = " FOR UPDATE SKIP LOCKED"
	}
	query := `UPDATE analysis_jobs SET status = ?, pod_id = ?, started_at = ?
		WHERE status = ? AND task_id = (
			SELECT task_id FROM analysis_jobs WHERE status = ?
			ORDER BY created_at, task_id LIMIT 1` + lock + `
		)
		RETURNING ` + jobColumns

	pending := string(models.JobPending)
	row := s.client.DB().QueryRowContext(ctx, s.client.Rebind(query),
		string(models.JobRunning), podID, s.now(), pending, pending)
	job, err := scanJob(row)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

// CompleteJob writes the terminal status and result of a running job.
// The result is written once. A result above the size ceiling is not
// stored; the job is failed instead and ErrResultTooLarge returned.
func (s *JobService) CompleteJob(ctx context.Context, taskID string, status models.JobStatus, result []byte, errMsg string) error {
	if !status.IsTerminal() {
		return NewValidationError("status", fmt.Sprintf("%q is not a terminal status", status))
	}
	if s.maxResultBytes > 0 && int64(len(result)) > s.maxResultBytes {
		msg := fmt.Sprintf("analysis result is %d bytes, limit is %d", len(result), s.maxResultBytes)
		if err := s.finish(ctx, taskID, models.JobFailed, nil, msg, models.JobRunning); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrResultTooLarge, msg)
	}
	return s.finish(ctx, taskID, status, result, errMsg, models.JobRunning)
}

// ReplaceResult overwrites the result of a completed job, e.g. after one
// stage was re-run. Jobs in any other status return ErrJobNotCompleted.
func (s *JobService) ReplaceResult(ctx context.Context, taskID string, result []byte) error {
	if s.maxResultBytes > 0 && int64(len(result)) > s.maxResultBytes {
		return fmt.Errorf("%w: analysis result is %d bytes, limit is %d", ErrResultTooLarge, len(result), s.maxResultBytes)
	}
	res, err := s.client.DB().ExecContext(ctx, s.client.Rebind(
		`UPDATE analysis_jobs SET result = ? WHERE task_id = ? AND status = ?`),
		string(result), taskID, string(models.JobCompleted))
	if err != nil {
		return fmt.Errorf("failed to replace result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to replace result: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetJob(ctx, taskID); err != nil {
		return err
	}
	return ErrJobNotCompleted
}

// CancelJob cancels a job. A pending job is marked cancelled directly and
// true is returned. A running job is left to the worker running it
// (false, nil). A finished job returns ErrJobFinished.
func (s *JobService) CancelJob(ctx context.Context, taskID string) (bool, error) {
	err := s.finish(ctx, taskID, models.JobCancelled, nil, "cancelled before start", models.JobPending)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrJobFinished) {
		return false, err
	}
	job, getErr := s.GetJob(ctx, taskID)
	if getErr != nil {
		return false, getErr
	}
	if job.Status == models.JobRunning {
		return false, nil
	}
	return false, ErrJobFinished
}

// finish moves a job from one of the from statuses to a terminal status.
func (s *JobService) finish(ctx context.Context, taskID string, status models.JobStatus, result []byte, errMsg string, from models.JobStatus) error {
	var resultArg any
	if result != nil {
		resultArg = string(result)
	}
	var errArg any
	if errMsg != "" {
		errArg = errMsg
	}

	res, err := s.client.DB().ExecContext(ctx, s.client.Rebind(
		`UPDATE analysis_jobs SET status = ?, result = ?, error = ?, completed_at = ?
		 WHERE task_id = ? AND status = ?`),
		string(status), resultArg, errArg, s.now(), taskID, string(from))
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetJob(ctx, taskID); err != nil {
		return err
	}
	return ErrJobFinished
}

// FailOrphanedJobs fails running jobs started before now-threshold.
func (s *JobService) FailOrphanedJobs(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := s.now().Add(-threshold)
	res, err := s.client.DB().ExecContext(ctx, s.client.Rebind(
		`UPDATE analysis_jobs SET status = ?, error = ?, completed_at = ?
		 WHERE status = ? AND started_at < ?`),
		string(models.JobFailed), fmt.Sprintf("Orphaned: still running after %s", threshold),
		s.now(), string(models.JobRunning), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to fail orphaned jobs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// FailPodJobs fails running jobs claimed by podID, used at startup after a crash.
func (s *JobService) FailPodJobs(ctx context.Context, podID string) (int, error) {
	res, err := s.client.DB().ExecContext(ctx, s.client.Rebind(
		`UPDATE analysis_jobs SET status = ?, error = ?, completed_at = ?
		 WHERE status = ? AND pod_id = ?`),
		string(models.JobFailed), fmt.Sprintf("Orphaned: pod %s restarted while job was running", podID),
		s.now(), string(models.JobRunning), podID)
	if err != nil {
		return 0, fmt.Errorf("failed to fail pod jobs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteExpiredJobs removes finished jobs completed more than retentionDays
// ago and returns their task ids so their blobs can be removed too.
func (s *JobService) DeleteExpiredJobs(ctx context.Context, retentionDays int) ([]string, error) {
	if retentionDays <= 0 {
		return nil, fmt.Errorf("retention_days must be positive, got %d", retentionDays)
	}
	cutoff := s.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	rows, err := s.client.DB().QueryContext(ctx, s.client.Rebind(
		`DELETE FROM analysis_jobs
		 WHERE completed_at IS NOT NULL AND completed_at < ?
		 RETURNING task_id`), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deleted job: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*models.Job, error) {
	var (
		job         models.Job
		status      string
		result      []byte
		errMsg      stdsql.NullString
		startedAt   stdsql.NullTime
		completedAt stdsql.NullTime
	)
	if err := row.Scan(&job.TaskID, &job.User, &job.Filename, &job.DatasetRef, &status,
		&result, &errMsg, &job.CreatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	if len(result) > 0 {
		job.Result = result
	}
	job.Error = errMsg.String
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}
