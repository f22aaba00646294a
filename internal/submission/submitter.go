package submission

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/memote-webservice/internal/metabolic"
	"github.com/JakeFAU/memote-webservice/internal/snapshot"
)

const defaultEnqueueTimeout = 5 * time.Second

// Enqueuer hands queue items to the task queue. The dispatcher and every
// snapshot.Queue satisfy it.
type Enqueuer interface {
	Enqueue(ctx context.Context, item snapshot.QueueItem) error
}

// Submitter records a job for a parsed model and enqueues the model snapshot
// task. It never waits for the task to run.
type Submitter struct {
	jobs    snapshot.JobStore
	queue   Enqueuer
	ids     snapshot.IDGenerator
	clock   snapshot.Clock
	timeout time.Duration
	logger  *zap.Logger
}

// NewSubmitter constructs a Submitter.
func NewSubmitter(
	jobs snapshot.JobStore,
	queue Enqueuer,
	ids snapshot.IDGenerator,
	clock snapshot.Clock,
	logger *zap.Logger,
) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		jobs:    jobs,
		queue:   queue,
		ids:     ids,
		clock:   clock,
		timeout: defaultEnqueueTimeout,
		logger:  logger,
	}
}

// abandon marks a job that never reached the queue as failed so its record
// does not stay queued until it expires.
func (s *Submitter) abandon(ctx context.Context, jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	out := snapshot.JobOutput{Exception: &snapshot.Exception{
		Type:    snapshot.ExceptionRuntime,
		Message: fmt.Sprintf("enqueue failed: %v", cause),
	}}
	if err := s.jobs.UpdateJobStatus(ctx, jobID, snapshot.JobStatusFailed, out); err != nil {
		s.logger.Error("mark unqueued job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// Submit stores a queued job and enqueues the model. Failures are returned
// without retrying.
func (s *Submitter) Submit(ctx context.Context, model *metabolic.Model, filename string) (string, error) {
	payload, err := metabolic.MarshalModel(model)
	if err != nil {
		return "", fmt.Errorf("encode model: %w", err)
	}
	jobID, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	now := s.clock.Now()
	job := snapshot.Job{
		ID:        jobID,
		Task:      snapshot.TaskModelSnapshot,
		Status:    snapshot.JobStatusQueued,
		Filename:  filename,
		Submitted: now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	item := snapshot.QueueItem{
		JobID:     jobID,
		Task:      snapshot.TaskModelSnapshot,
		Payload:   payload,
		Attempt:   1,
		Submitted: now.Unix(),
	}
	if err := s.queue.Enqueue(queueCtx, item); err != nil {
		s.abandon(ctx, jobID, err)
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	s.logger.Debug("submitted job", zap.String("job_id", jobID), zap.String("model_id", model.ID))
	return jobID, nil
}
