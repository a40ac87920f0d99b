package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"

	"ytaudio-server/internal/models"
)

var ErrNotFound = errors.New("job not found")

// Store is the job registry. Values are copies: callers read, modify and
// write back, and the last writer wins.
type Store interface {
	Get(ctx context.Context, id string) (models.Job, error)
	Set(ctx context.Context, job models.Job) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Job, error)
}

// MemoryStore keeps jobs in process memory only.
type MemoryStore struct {
	jobs sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Job, error) {
	val, ok := s.jobs.Load(id)
	if !ok {
		return models.Job{}, ErrNotFound
	}
	return val.(models.Job), nil
}

func (s *MemoryStore) Set(_ context.Context, job models.Job) error {
	s.jobs.Store(job.ID, job)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.jobs.Delete(id)
	return nil
}

// List returns all jobs ordered by creation time.
func (s *MemoryStore) List(_ context.Context) ([]models.Job, error) {
	var out []models.Job
	s.jobs.Range(func(_, value any) bool {
		out = append(out, value.(models.Job))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
