package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// Store is an in-memory RunStore for tests and local runs
type Store struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*model.Run
}

var _ interfaces.RunStore = (*Store)(nil)

// New creates an empty in-memory store
func New() *Store {
	return &Store{runs: make(map[uuid.UUID]*model.Run)}
}

// PutRun creates or replaces a run record
func (s *Store) PutRun(_ context.Context, run *model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *run
	clone.Jobs = append([]model.JobRun(nil), run.Jobs...)
	s.runs[run.ID] = &clone
	return nil
}

// GetRun returns a run by ID, or types.ErrRunNotFound
func (s *Store) GetRun(_ context.Context, id uuid.UUID) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, goerr.Wrap(types.ErrRunNotFound, "run not found", goerr.V("run_id", id))
	}

	clone := *run
	clone.Jobs = append([]model.JobRun(nil), run.Jobs...)
	return &clone, nil
}

// ListRuns returns recent runs, newest first
func (s *Store) ListRuns(_ context.Context, limit int) ([]*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		clone := *run
		clone.Jobs = append([]model.JobRun(nil), run.Jobs...)
		runs = append(runs, &clone)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// FindInFlight returns unfinished runs for the repository with the given
// concurrency key
func (s *Store) FindInFlight(_ context.Context, repository, concurrencyKey string) ([]*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*model.Run
	for _, run := range s.runs {
		if run.Repository != repository || run.ConcurrencyKey != concurrencyKey {
			continue
		}
		if run.Status.IsFinished() {
			continue
		}
		clone := *run
		clone.Jobs = append([]model.JobRun(nil), run.Jobs...)
		runs = append(runs, &clone)
	}
	return runs, nil
}
