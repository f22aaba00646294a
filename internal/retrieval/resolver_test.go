package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/memote-webservice/internal/snapshot"
)

type mapJobs struct {
	jobs  map[string]snapshot.Job
	err   error
	reads int
}

func (m *mapJobs) GetJob(_ context.Context, id string) (snapshot.Job, error) {
	m.reads++
	if m.err != nil {
		return snapshot.Job{}, m.err
	}
	job, ok := m.jobs[id]
	if !ok {
		return snapshot.Job{}, snapshot.ErrJobNotFound
	}
	return job, nil
}

func testReport() *snapshot.Report {
	meta := snapshot.ReportMeta{ModelID: "mini", Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Version: "test"}
	return snapshot.NewReport(meta, []snapshot.TestResult{
		{ID: "test_model_id_presence", Title: "Model Identifier", Outcome: snapshot.OutcomePassed},
		{ID: "test_genes_presence", Title: "Total Genes", Outcome: snapshot.OutcomeFailed, Metric: 1},
	})
}

func currentResult(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := snapshot.EncodeResult(snapshot.Metadata{JobID: "done", ModelID: "mini"}, testReport())
	require.NoError(t, err)
	return raw
}

func legacyResult(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := testReport().RenderJSON()
	require.NoError(t, err)
	return raw
}

func TestResolve(t *testing.T) {
	t.Parallel()

	store := &mapJobs{jobs: map[string]snapshot.Job{
		"queued":  {ID: "queued", Status: snapshot.JobStatusQueued},
		"running": {ID: "running", Status: snapshot.JobStatusRunning},
		"failed": {ID: "failed", Status: snapshot.JobStatusFailed,
			Exception: &snapshot.Exception{Type: "TimeLimitExceeded", Message: "task exceeded 10m0s"}},
		"done":   {ID: "done", Status: snapshot.JobStatusSucceeded, Result: currentResult(t)},
		"legacy": {ID: "legacy", Status: snapshot.JobStatusSucceeded, Result: append([]byte("\n  "), legacyResult(t)...)},
	}}
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	for _, id := range []string{"queued", "running", "missing"} {
		res, err := resolver.Resolve(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatePending, res.State, id)
	}

	res, err := resolver.Resolve(ctx, "failed")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "TimeLimitExceeded", res.Exception.Type)
	assert.Nil(t, res.Report)

	res, err = resolver.Resolve(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, "mini", res.Report.Meta().ModelID)
	meta, _, err := DecodeResult(store.jobs["done"].Result)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "done", meta.JobID)

	res, err = resolver.Resolve(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, testReport().Tests(), res.Report.Tests())
	meta, _, err = DecodeResult(store.jobs["legacy"].Result)
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestResolveIsRepeatable(t *testing.T) {
	t.Parallel()

	store := &mapJobs{jobs: map[string]snapshot.Job{
		"done": {ID: "done", Status: snapshot.JobStatusSucceeded, Result: currentResult(t)},
	}}
	resolver := NewResolver(store, nil)
	first, err := resolver.Resolve(context.Background(), "done")
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, first.Report.Tests(), second.Report.Tests())
	assert.Equal(t, 2, store.reads)
	assert.Equal(t, snapshot.JobStatusSucceeded, store.jobs["done"].Status)
}

func TestResolveFailedWithoutException(t *testing.T) {
	t.Parallel()

	store := &mapJobs{jobs: map[string]snapshot.Job{"x": {ID: "x", Status: snapshot.JobStatusFailed}}}
	res, err := NewResolver(store, nil).Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, snapshot.ExceptionRuntime, res.Exception.Type)
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(&mapJobs{err: errors.New("connection refused")}, nil).Resolve(context.Background(), "x")
	assert.ErrorContains(t, err, "connection refused")

	store := &mapJobs{jobs: map[string]snapshot.Job{
		"bad": {ID: "bad", Status: snapshot.JobStatusSucceeded, Result: json.RawMessage(`"text"`)},
	}}
	_, err = NewResolver(store, nil).Resolve(context.Background(), "bad")
	assert.Error(t, err)
}

func TestDecodeResultShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "empty", raw: "   ", wantErr: true},
		{name: "one element", raw: `[{}]`, wantErr: true},
		{name: "bad metadata", raw: `[1, {"tests": {}}]`, wantErr: true},
		{name: "report without tests", raw: `[{}, {"meta": {}}]`, wantErr: true},
		{name: "tuple", raw: `[{"job_id": "a"}, {"tests": {}}]`},
		{name: "legacy", raw: `{"tests": {}}`},
		{name: "scalar", raw: `42`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, report, err := DecodeResult(json.RawMessage(tc.raw))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, report)
		})
	}
}
