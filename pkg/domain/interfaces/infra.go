package interfaces

import (
	"context"
	"io"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// ArtifactStore uploads job artifacts to object storage
type ArtifactStore interface {
	// Upload stores the object under the given name and returns its
	// storage location
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

// ReportClient uploads coverage reports and run reports to the report
// service, and publishes distributions to the package index. Both are
// plain HTTP endpoints owned by external services.
type ReportClient interface {
	// UploadCoverage uploads a coverage report for a commit
	UploadCoverage(ctx context.Context, repository, sha, flag string, report io.Reader) error

	// PublishPackage uploads a distribution file to the package index
	PublishPackage(ctx context.Context, filename string, dist io.Reader) error
}

// Notifier delivers run completion notifications
type Notifier interface {
	NotifyRunCompleted(ctx context.Context, run *model.Run, channel string) error
}
