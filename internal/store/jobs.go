// Package store persists keyed job documents as JSON files, one per job,
// with a single-writer-per-key discipline over all mutations.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/forPelevin/podclip/internal/types"
)

var ErrNotFound = errors.New("store: job not found")

type JobStore struct {
	dir   string
	locks *KeyLocks
}

func NewJobStore(dir string) (*JobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create jobs dir: %w", err)
	}
	return &JobStore{dir: dir, locks: NewKeyLocks()}, nil
}

// Create persists a new job record. The ID must be set by the caller.
func (s *JobStore) Create(job *types.Job) error {
	if job.ID == "" {
		return fmt.Errorf("store: job id is empty")
	}
	unlock := s.locks.Lock(job.ID)
	defer unlock()
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	return s.write(job)
}

// Get returns a copy of the stored job.
func (s *JobStore) Get(id string) (*types.Job, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.read(id)
}

// Update applies fn to the current record and persists the result atomically
// with respect to other callers for the same id. fn returning an error aborts
// the update without writing.
func (s *JobStore) Update(id string, fn func(*types.Job) error) (*types.Job, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	job, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if err := fn(job); err != nil {
		return nil, err
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.write(job); err != nil {
		return nil, err
	}
	return job, nil
}

// List returns all jobs, newest first.
func (s *JobStore) List() ([]*types.Job, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read jobs dir: %w", err)
	}
	jobs := make([]*types.Job, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		job, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs, nil
}

func (s *JobStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *JobStore) read(id string) (*types.Job, error) {
	b, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read job %s: %w", id, err)
	}
	var job types.Job
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// write serialises via a temp file and rename so readers never observe a
// partially written document.
func (s *JobStore) write(job *types.Job) error {
	b, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	tmp := s.path(job.ID) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write job temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path(job.ID)); err != nil {
		return fmt.Errorf("persist job file: %w", err)
	}
	return nil
}
