package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

const runCollection = "runs"

// Store is a Firestore-backed RunStore
type Store struct {
	client *firestore.Client
}

var _ interfaces.RunStore = (*Store)(nil)

// New creates a RunStore on the given Firestore project. Extra client
// options are passed through, e.g. option.WithEndpoint for the emulator.
func New(ctx context.Context, projectID string, opts ...option.ClientOption) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("project", projectID))
	}
	return &Store{client: client}, nil
}

// Close releases the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

// PutRun creates or replaces a run record
func (s *Store) PutRun(ctx context.Context, run *model.Run) error {
	_, err := s.client.Collection(runCollection).Doc(run.ID.String()).Set(ctx, run)
	if err != nil {
		return goerr.Wrap(err, "failed to put run", goerr.V("run_id", run.ID))
	}
	return nil
}

// GetRun returns a run by ID, or types.ErrRunNotFound
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*model.Run, error) {
	doc, err := s.client.Collection(runCollection).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrRunNotFound, "run not found", goerr.V("run_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get run", goerr.V("run_id", id))
	}

	var run model.Run
	if err := doc.DataTo(&run); err != nil {
		return nil, goerr.Wrap(err, "failed to decode run", goerr.V("run_id", id))
	}
	return &run, nil
}

// ListRuns returns recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	query := s.client.Collection(runCollection).
		OrderBy("created_at", firestore.Desc).
		Limit(limit)

	return s.queryRuns(query.Documents(ctx))
}

// FindInFlight returns unfinished runs for the repository with the given
// concurrency key
func (s *Store) FindInFlight(ctx context.Context, repository, concurrencyKey string) ([]*model.Run, error) {
	query := s.client.Collection(runCollection).
		Where("repository", "==", repository).
		Where("concurrency_key", "==", concurrencyKey).
		Where("status", "in", []string{
			string(model.RunStatusQueued),
			string(model.RunStatusRunning),
		})

	return s.queryRuns(query.Documents(ctx))
}

func (s *Store) queryRuns(iter *firestore.DocumentIterator) ([]*model.Run, error) {
	defer iter.Stop()

	var runs []*model.Run
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate runs")
		}

		var run model.Run
		if err := doc.DataTo(&run); err != nil {
			return nil, goerr.Wrap(err, "failed to decode run", goerr.V("doc", doc.Ref.ID))
		}
		runs = append(runs, &run)
	}
	return runs, nil
}
