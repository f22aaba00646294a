package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/memote-webservice/internal/snapshot"
)

// JobStore provides an in-memory implementation for development/testing.
// Finished jobs are reported as not found once they are older than the
// result TTL.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]snapshot.Job
	ttl  time.Duration
	now  func() time.Time
}

// NewJobStore constructs a JobStore. A zero resultTTL keeps results forever.
func NewJobStore(resultTTL time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]snapshot.Job),
		ttl:  resultTTL,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob stores a new job in queued status.
func (s *JobStore) CreateJob(_ context.Context, job snapshot.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus moves a job to status and records the output of terminal
// states.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status snapshot.JobStatus,
	out snapshot.JobOutput,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("update job %s: %w", jobID, snapshot.ErrJobNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s already %s", jobID, job.Status)
	}
	job.Status = status
	now := s.now()
	if status == snapshot.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.Terminal() {
		job.Finished = pointerTime(now)
		job.Exception = out.Exception
		job.Result = append([]byte(nil), out.Result...)
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (snapshot.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok || s.expired(job) {
		return snapshot.Job{}, snapshot.ErrJobNotFound
	}
	job.Result = append([]byte(nil), job.Result...)
	return job, nil
}

func (s *JobStore) expired(job snapshot.Job) bool {
	return s.ttl > 0 && job.Finished != nil && s.now().Sub(*job.Finished) > s.ttl
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
