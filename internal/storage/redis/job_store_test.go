package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/memote-webservice/internal/snapshot"
)

func newTestStore(t *testing.T, ttl time.Duration) (*JobStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewJobStore(client, ttl)
	require.NoError(t, err)
	return store, mr
}

func TestJobStoreLifecycle(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()
	job := snapshot.Job{
		ID:        "job-1",
		Task:      snapshot.TaskModelSnapshot,
		Status:    snapshot.JobStatusQueued,
		Filename:  "model.json",
		Submitted: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateJob(ctx, job))
	assert.ErrorContains(t, store.CreateJob(ctx, job), "already exists")
	assert.Equal(t, time.Duration(0), mr.TTL(keyPrefix+"job-1"))

	require.NoError(t, store.UpdateJobStatus(ctx, "job-1", snapshot.JobStatusRunning, snapshot.JobOutput{}))
	running, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, snapshot.JobStatusRunning, running.Status)
	require.NotNil(t, running.Started)

	result := []byte(`[{"job_id":"job-1"},{"tests":{}}]`)
	require.NoError(t, store.UpdateJobStatus(ctx, "job-1", snapshot.JobStatusSucceeded, snapshot.JobOutput{Result: result}))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"job-1"))

	done, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, snapshot.JobStatusSucceeded, done.Status)
	assert.JSONEq(t, string(result), string(done.Result))
	assert.Equal(t, "model.json", done.Filename)

	err = store.UpdateJobStatus(ctx, "job-1", snapshot.JobStatusFailed, snapshot.JobOutput{})
	assert.ErrorContains(t, err, "already succeeded")

	mr.FastForward(2 * time.Hour)
	_, err = store.GetJob(ctx, "job-1")
	assert.True(t, errors.Is(err, snapshot.ErrJobNotFound))
}

func TestJobStoreFailedJob(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, snapshot.Job{ID: "job-2", Status: snapshot.JobStatusQueued}))
	exc := &snapshot.Exception{Type: "TimeLimitExceeded", Message: "too slow"}
	require.NoError(t, store.UpdateJobStatus(ctx, "job-2", snapshot.JobStatusFailed, snapshot.JobOutput{Exception: exc}))

	job, err := store.GetJob(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, exc, job.Exception)
	assert.Empty(t, job.Result)
}

func TestJobStoreUnknownJob(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, 0)
	ctx := context.Background()
	_, err := store.GetJob(ctx, "nope")
	assert.True(t, errors.Is(err, snapshot.ErrJobNotFound))
	err = store.UpdateJobStatus(ctx, "nope", snapshot.JobStatusRunning, snapshot.JobOutput{})
	assert.True(t, errors.Is(err, snapshot.ErrJobNotFound))
	require.NoError(t, store.Ping(ctx))
}

func TestNewClientErrors(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), "not a url")
	assert.Error(t, err)
	_, err = NewJobStore(nil, 0)
	assert.Error(t, err)
}
