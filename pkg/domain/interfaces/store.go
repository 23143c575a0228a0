package interfaces

import (
	"context"

	"github.com/google/uuid"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// RunStore persists workflow runs
type RunStore interface {
	// PutRun creates or replaces a run record
	PutRun(ctx context.Context, run *model.Run) error

	// GetRun returns a run by ID, or types.ErrRunNotFound
	GetRun(ctx context.Context, id uuid.UUID) (*model.Run, error)

	// ListRuns returns recent runs for all repositories, newest first
	ListRuns(ctx context.Context, limit int) ([]*model.Run, error)

	// FindInFlight returns unfinished runs for the repository with the
	// given concurrency key
	FindInFlight(ctx context.Context, repository, concurrencyKey string) ([]*model.Run, error)
}
