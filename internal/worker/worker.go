// Package worker runs queued snapshot jobs and records their outcome in the
// job store.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/memote-webservice/internal/metabolic"
	"github.com/JakeFAU/memote-webservice/internal/metrics"
	"github.com/JakeFAU/memote-webservice/internal/snapshot"
)

const (
	defaultTaskTimeout  = 10 * time.Minute
	statusWriteTimeout  = 5 * time.Second
	dequeueErrorBackoff = 100 * time.Millisecond
)

// Config controls Worker behavior.
type Config struct {
	TaskTimeout time.Duration
	Topic       string
}

// Runner executes the snapshot suite against a parsed model.
type Runner interface {
	Run(ctx context.Context, model *metabolic.Model) (*snapshot.Report, error)
}

// CompletionEvent is published once a job reaches a terminal state.
type CompletionEvent struct {
	JobID      string              `json:"job_id"`
	Status     snapshot.JobStatus  `json:"status"`
	ModelID    string              `json:"model_id,omitempty"`
	Digest     string              `json:"digest,omitempty"`
	Exception  *snapshot.Exception `json:"exception,omitempty"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Worker consumes queue items and executes the snapshot task.
type Worker struct {
	queue     snapshot.Queue
	jobStore  snapshot.JobStore
	runner    Runner
	publisher snapshot.Publisher
	hasher    snapshot.Hasher
	clock     snapshot.Clock
	cfg       Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New constructs a Worker. publisher may be nil when no topic is configured.
func New(
	queue snapshot.Queue,
	jobStore snapshot.JobStore,
	runner Runner,
	publisher snapshot.Publisher,
	hasher snapshot.Hasher,
	clock snapshot.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		jobStore:  jobStore,
		runner:    runner,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/JakeFAU/memote-webservice/internal/worker"),
	}
}

// Run blocks, consuming queue items until the context finishes or the queue
// is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, snapshot.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueErrorBackoff):
			}
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID), zap.Int("attempt", item.Attempt))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item snapshot.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	ctx, span := w.tracer.Start(ctx, "snapshot.task", trace.WithAttributes(
		attribute.String("job.id", item.JobID),
		attribute.String("job.task", item.Task),
	))
	defer span.End()

	logger := w.logger.With(zap.String("job_id", item.JobID), zap.String("task", item.Task))
	started := w.clock.Now()

	if item.Task != snapshot.TaskModelSnapshot {
		logger.Error("task is not registered")
		w.finish(ctx, span, logger, item, started, nil, &snapshot.Exception{
			Type:    snapshot.ExceptionNotRegistered,
			Message: fmt.Sprintf("task %q is not registered", item.Task),
		})
		return
	}

	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, snapshot.JobStatusRunning, snapshot.JobOutput{}); err != nil {
		if errors.Is(err, snapshot.ErrJobNotFound) {
			logger.Warn("job record missing; dropping task", zap.Error(err))
			return
		}
		logger.Error("update job status failed", zap.Error(err))
		w.finish(ctx, span, logger, item, started, nil, snapshot.ExceptionFromError(err))
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, w.cfg.TaskTimeout)
	defer cancel()
	report, exc := w.execute(taskCtx, item)
	w.finish(ctx, span, logger, item, started, report, exc)
}

// execute runs the task body. A panic becomes a failed job rather than a
// dead worker.
func (w *Worker) execute(ctx context.Context, item snapshot.QueueItem) (report *snapshot.Report, exc *snapshot.Exception) {
	defer func() {
		if rec := recover(); rec != nil {
			report, exc = nil, snapshot.ExceptionFromPanic(rec)
		}
	}()
	model, err := metabolic.ParseJSON(bytes.NewReader(item.Payload))
	if err != nil {
		return nil, snapshot.ExceptionFromError(err)
	}
	report, err = w.runner.Run(ctx, model)
	if err != nil {
		return nil, snapshot.ExceptionFromError(err)
	}
	return report, nil
}

// finish stores the terminal state and publishes the completion event. It
// runs even when ctx has been canceled by shutdown.
func (w *Worker) finish(
	ctx context.Context,
	span trace.Span,
	logger *zap.Logger,
	item snapshot.QueueItem,
	started time.Time,
	report *snapshot.Report,
	exc *snapshot.Exception,
) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	finished := w.clock.Now()
	event := CompletionEvent{JobID: item.JobID, FinishedAt: finished}
	out := snapshot.JobOutput{}

	if exc == nil {
		meta, raw, err := w.encode(item, report, started, finished)
		if err != nil {
			exc = snapshot.ExceptionFromError(err)
		} else {
			out.Result = raw
			event.ModelID = meta.ModelID
			event.Digest = meta.Digest
		}
	}

	status := snapshot.JobStatusSucceeded
	if exc != nil {
		status = snapshot.JobStatusFailed
		out = snapshot.JobOutput{Exception: exc}
		event.Exception = exc
		span.SetStatus(codes.Error, exc.Type)
		logger.Warn("job failed", zap.String("exception", exc.Type), zap.String("message", exc.Message))
	} else {
		logger.Info("job succeeded", zap.Duration("duration", finished.Sub(started)))
	}
	event.Status = status

	metrics.ObserveJob(string(status))
	metrics.ObserveTaskDuration(item.Task, finished.Sub(started))

	if err := w.jobStore.UpdateJobStatus(writeCtx, item.JobID, status, out); err != nil {
		logger.Error("final job status update failed", zap.Error(err))
		return
	}
	w.publish(writeCtx, logger, event)
}

func (w *Worker) encode(
	item snapshot.QueueItem,
	report *snapshot.Report,
	started, finished time.Time,
) (snapshot.Metadata, []byte, error) {
	digest, err := w.hasher.Hash(item.Payload)
	if err != nil {
		return snapshot.Metadata{}, nil, fmt.Errorf("hash payload: %w", err)
	}
	meta := snapshot.Metadata{
		JobID:      item.JobID,
		ModelID:    report.Meta().ModelID,
		Digest:     digest,
		FinishedAt: finished,
		DurationMs: finished.Sub(started).Milliseconds(),
	}
	raw, err := snapshot.EncodeResult(meta, report)
	if err != nil {
		return snapshot.Metadata{}, nil, err
	}
	return meta, raw, nil
}

// publish is best effort: the job outcome is already stored.
func (w *Worker) publish(ctx context.Context, logger *zap.Logger, event CompletionEvent) {
	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	id, err := w.publisher.Publish(ctx, w.cfg.Topic, event)
	if err != nil {
		logger.Error("publish completion event failed", zap.Error(err))
		return
	}
	logger.Debug("completion event published", zap.String("message_id", id), zap.String("topic", w.cfg.Topic))
}
