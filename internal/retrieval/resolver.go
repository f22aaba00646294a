// Package retrieval maps job ids to their outcome and renders finished
// reports in the representation a client asked for.
package retrieval

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/JakeFAU/memote-webservice/internal/snapshot"
)

// State is the outcome of a job as seen by a client.
type State int

// Resolved job states. Pending covers queued, running, unknown and expired
// jobs alike.
const (
	StatePending State = iota
	StateFailed
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StateFailed:
		return "failed"
	case StateSucceeded:
		return "succeeded"
	default:
		return "pending"
	}
}

// Resolution is what a lookup found. Exception is set for failed jobs and
// Report for succeeded ones.
type Resolution struct {
	State     State
	Exception *snapshot.Exception
	Report    *snapshot.Report
}

// JobReader is the read side of a job store.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (snapshot.Job, error)
}

// Resolver looks up job outcomes. It never writes to the store, so
// resolving the same id repeatedly is safe.
type Resolver struct {
	jobs   JobReader
	logger *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(jobs JobReader, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{jobs: jobs, logger: logger}
}

// Resolve classifies the job. Store failures and undecodable results are
// returned as errors; job failures are not.
func (r *Resolver) Resolve(ctx context.Context, jobID string) (Resolution, error) {
	job, err := r.jobs.GetJob(ctx, jobID)
	if errors.Is(err, snapshot.ErrJobNotFound) {
		r.logger.Info("result is pending; assuming it is expired", zap.String("job_id", jobID))
		return Resolution{State: StatePending}, nil
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("get job %s: %w", jobID, err)
	}

	switch job.Status {
	case snapshot.JobStatusFailed:
		exc := job.Exception
		if exc == nil {
			exc = &snapshot.Exception{Type: snapshot.ExceptionRuntime, Message: "job failed without an exception"}
		}
		return Resolution{State: StateFailed, Exception: exc}, nil
	case snapshot.JobStatusSucceeded:
		_, report, err := DecodeResult(job.Result)
		if err != nil {
			return Resolution{}, fmt.Errorf("job %s: %w", jobID, err)
		}
		return Resolution{State: StateSucceeded, Report: report}, nil
	default:
		r.logger.Debug("result is pending", zap.String("job_id", jobID), zap.String("status", string(job.Status)))
		return Resolution{State: StatePending}, nil
	}
}

// DecodeResult reads a stored result. Current results are a two element
// array of metadata and report. A bare report object is the layout used
// before metadata was stored; that branch can go once every result written
// in the old layout is older than the configured result TTL.
func DecodeResult(raw json.RawMessage) (*snapshot.Metadata, *snapshot.Report, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil, errors.New("decode result: empty payload")
	}
	switch trimmed[0] {
	case '[':
		var tuple []json.RawMessage
		if err := json.Unmarshal(trimmed, &tuple); err != nil {
			return nil, nil, fmt.Errorf("decode result: %w", err)
		}
		if len(tuple) != 2 {
			return nil, nil, fmt.Errorf("decode result: expected 2 elements, got %d", len(tuple))
		}
		var meta snapshot.Metadata
		if err := json.Unmarshal(tuple[0], &meta); err != nil {
			return nil, nil, fmt.Errorf("decode result metadata: %w", err)
		}
		report, err := snapshot.DecodeReport(tuple[1])
		if err != nil {
			return nil, nil, err
		}
		return &meta, report, nil
	case '{':
		report, err := snapshot.DecodeReport(trimmed)
		if err != nil {
			return nil, nil, err
		}
		return nil, report, nil
	default:
		return nil, nil, fmt.Errorf("decode result: unexpected payload starting with %q", trimmed[0])
	}
}
