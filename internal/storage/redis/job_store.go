// Package redis stores snapshot jobs and results in Redis. Finished jobs
// expire through key TTLs.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/memote-webservice/internal/snapshot"
)

const (
	keyPrefix        = "memote:job:"
	maxWatchAttempts = 3
)

// NewClient parses a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// JobStore keeps one JSON document per job.
type JobStore struct {
	client *goredis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewJobStore wraps client. A zero resultTTL keeps finished jobs forever.
func NewJobStore(client *goredis.Client, resultTTL time.Duration) (*JobStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &JobStore{
		client: client,
		ttl:    resultTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func jobKey(id string) string {
	return keyPrefix + id
}

// Ping checks connectivity.
func (s *JobStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// CreateJob stores a new job. Reusing an id is an error.
func (s *JobStore) CreateJob(ctx context.Context, job snapshot.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	created, err := s.client.SetNX(ctx, jobKey(job.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	if !created {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	return nil
}

// UpdateJobStatus moves a job to status inside a WATCH transaction.
// Terminal states record the outcome and start the result TTL.
func (s *JobStore) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status snapshot.JobStatus,
	out snapshot.JobOutput,
) error {
	key := jobKey(jobID)
	update := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return fmt.Errorf("update job %s: %w", jobID, snapshot.ErrJobNotFound)
		}
		if err != nil {
			return fmt.Errorf("load job %s: %w", jobID, err)
		}
		var job snapshot.Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return fmt.Errorf("decode job %s: %w", jobID, err)
		}
		if job.Status.Terminal() {
			return fmt.Errorf("job %s already %s", jobID, job.Status)
		}

		now := s.now()
		job.Status = status
		var ttl time.Duration
		if status == snapshot.JobStatusRunning && job.Started == nil {
			job.Started = &now
		}
		if status.Terminal() {
			job.Finished = &now
			job.Exception = out.Exception
			job.Result = out.Result
			ttl = s.ttl
		}
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}

	var err error
	for range maxWatchAttempts {
		err = s.client.Watch(ctx, update, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("update job %s: %w", jobID, err)
}

// GetJob reads a job. Unknown and expired jobs return snapshot.ErrJobNotFound.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (snapshot.Job, error) {
	raw, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return snapshot.Job{}, snapshot.ErrJobNotFound
	}
	if err != nil {
		return snapshot.Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	var job snapshot.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return snapshot.Job{}, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return job, nil
}
