package submission

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/JakeFAU/memote-webservice/internal/snapshot"
)

const miniModelJSON = `{
  "id": "mini",
  "compartments": {"c": "cytosol"},
  "metabolites": [
    {"id": "a_c", "compartment": "c", "formula": "C6H12O6", "charge": 0},
    {"id": "b_c", "compartment": "c"}
  ],
  "reactions": [
    {"id": "R1", "metabolites": {"a_c": -1, "b_c": 1}, "lower_bound": 0, "upper_bound": 1000,
     "gene_reaction_rule": "g1", "objective_coefficient": 1}
  ],
  "genes": [{"id": "g1"}]
}`

const rejectedSBML = `<?xml version="1.0" encoding="UTF-8"?>
<sbml xmlns="http://www.sbml.org/sbml/level3/version1/core" level="3" version="1">
  <model id="broken">
    <listOfSpecies>
      <species id="x" compartment="nowhere"/>
    </listOfSpecies>
  </model>
</sbml>`

type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) PutObject(_ context.Context, path, _ string, data io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = body
	return "memory://" + path, nil
}

func (f *fakeBlobStore) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for name := range f.objects {
		out = append(out, name)
	}
	return out
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", s.n), nil
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]snapshot.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]snapshot.Job)}
}

func (f *fakeJobStore) CreateJob(_ context.Context, job snapshot.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobStore) UpdateJobStatus(_ context.Context, id string, status snapshot.JobStatus, out snapshot.JobOutput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return snapshot.ErrJobNotFound
	}
	job.Status = status
	job.Exception = out.Exception
	f.jobs[id] = job
	return nil
}

func (f *fakeJobStore) GetJob(_ context.Context, id string) (snapshot.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return snapshot.Job{}, snapshot.ErrJobNotFound
	}
	return job, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	items []snapshot.QueueItem
	err   error
}

func (f *fakeQueue) Enqueue(ctx context.Context, item snapshot.QueueItem) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return fmt.Errorf("enqueue without deadline")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
	return nil
}
