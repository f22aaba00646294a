// Package snapshot defines the job model shared by the submission API, the
// result store and the workers that run the model snapshot test suite.
package snapshot

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// TaskModelSnapshot is the queue task name for model snapshot validation.
const TaskModelSnapshot = "model_snapshot"

// JobStatus represents the lifecycle state of a snapshot job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// ErrJobNotFound is returned by job stores for unknown or expired jobs.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned by queues that have been shut down.
var ErrQueueClosed = errors.New("queue closed")

// Job is the record kept for every submission.
type Job struct {
	ID        string          `json:"id"`
	Task      string          `json:"task"`
	Status    JobStatus       `json:"status"`
	Filename  string          `json:"filename,omitempty"`
	Submitted time.Time       `json:"submitted_at"`
	Started   *time.Time      `json:"started_at,omitempty"`
	Finished  *time.Time      `json:"finished_at,omitempty"`
	Exception *Exception      `json:"exception,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// JobOutput carries what a worker reports when a job changes state.
// Exception is set for failed jobs, Result for succeeded ones.
type JobOutput struct {
	Exception *Exception
	Result    json.RawMessage
}

// Exception describes why a job failed.
type Exception struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// QueueItem wraps a job ready to run. Payload holds the model in its JSON
// exchange layout.
type QueueItem struct {
	JobID     string          `json:"job_id"`
	Task      string          `json:"task"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	Submitted int64           `json:"submitted"`
}
