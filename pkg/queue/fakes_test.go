package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/pkg/services"
)

type completion struct {
	status models.JobStatus
	result []byte
	errMsg string
}

// fakeStore is an in-memory JobStore.
type fakeStore struct {
	mu          sync.Mutex
	pending     []*models.Job
	completed   map[string]completion
	completeErr error
	countErr    error
	orphans     int
	podJobs     map[string]int
}

func newFakeStore(jobs ...*models.Job) *fakeStore {
	return &fakeStore{pending: jobs, completed: map[string]completion{}, podJobs: map[string]int{}}
}

func (s *fakeStore) ClaimNextJob(_ context.Context, _ string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, services.ErrNoJobsAvailable
	}
	job := s.pending[0]
	s.pending = s.pending[1:]
	job.Status = models.JobRunning
	return job, nil
}

func (s *fakeStore) CompleteJob(_ context.Context, taskID string, status models.JobStatus, result []byte, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		s.completed[taskID] = completion{status: models.JobFailed, errMsg: s.completeErr.Error()}
		return s.completeErr
	}
	s.completed[taskID] = completion{status: status, result: result, errMsg: errMsg}
	return nil
}

func (s *fakeStore) CountJobs(_ context.Context, status models.JobStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	if status == models.JobPending {
		return len(s.pending), nil
	}
	return 0, nil
}

func (s *fakeStore) FailOrphanedJobs(_ context.Context, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.orphans
	s.orphans = 0
	return n, nil
}

func (s *fakeStore) FailPodJobs(_ context.Context, podID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.podJobs[podID]
	delete(s.podJobs, podID)
	return n, nil
}

func (s *fakeStore) completion(taskID string) (completion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.completed[taskID]
	return c, ok
}

// funcExecutor adapts a function to JobExecutor.
type funcExecutor func(ctx context.Context, job *models.Job) *ExecutionResult

func (f funcExecutor) Execute(ctx context.Context, job *models.Job) *ExecutionResult {
	return f(ctx, job)
}

// recordingPublisher keeps every status message published.
type recordingPublisher struct {
	mu       sync.Mutex
	statuses []models.JobStatus
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, payload []byte) error {
	var msg struct {
		Type   string           `json:"type"`
		Status models.JobStatus `json:"status"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if msg.Type == "status" {
		p.statuses = append(p.statuses, msg.Status)
	}
	return nil
}

func (p *recordingPublisher) recorded() []models.JobStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.JobStatus(nil), p.statuses...)
}
