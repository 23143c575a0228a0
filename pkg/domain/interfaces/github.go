package interfaces

import (
	"context"

	"github.com/google/go-github/v75/github"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// GitHubClient defines operations for interacting with GitHub API
type GitHubClient interface {
	// DownloadZipball downloads the source code zipball for a specific commit
	DownloadZipball(ctx context.Context, owner, repo, ref string) ([]byte, error)

	// CreateComment creates a comment on a pull request or issue
	CreateComment(ctx context.Context, owner, repo string, number int, comment *github.IssueComment) (*github.IssueComment, *github.Response, error)

	// CreateCommitStatus reports a job outcome against a commit. The
	// status context identifies the job instance, so each matrix cell
	// reports separately.
	CreateCommitStatus(ctx context.Context, owner, repo, sha string, status *github.RepoStatus) error

	// ListLabels returns the current label set of a pull request
	ListLabels(ctx context.Context, owner, repo string, number int) (model.LabelSet, error)
}
