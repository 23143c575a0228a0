package interfaces

import (
	"context"

	"github.com/google/uuid"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// ProcessEvent processes a webhook event
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) error
}

// TriggerUseCase turns a webhook event into workflow runs
type TriggerUseCase interface {
	// HandleEvent plans and starts runs for every workflow the event
	// triggers
	HandleEvent(ctx context.Context, event *model.WebhookEvent) error
}

// RunUseCase defines operations on workflow runs exposed by the API
type RunUseCase interface {
	// ListRuns returns recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]*model.Run, error)

	// GetRun returns a single run by ID
	GetRun(ctx context.Context, id uuid.UUID) (*model.Run, error)

	// CancelRun cancels an in-flight run
	CancelRun(ctx context.Context, id uuid.UUID) error

	// RerunRun re-triggers a finished run as a fresh run. There is no
	// automatic retry; this is the only way to repeat a failed run.
	RerunRun(ctx context.Context, id uuid.UUID) (*model.Run, error)
}

// SummaryUseCase summarizes a failed run and posts the result to the
// originating pull request
type SummaryUseCase interface {
	SummarizeFailure(ctx context.Context, run *model.Run) error
}
