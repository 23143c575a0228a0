package model

import "time"

// WebhookEventType represents the type of webhook event received
type WebhookEventType string

const (
	EventTypePullRequest WebhookEventType = "pull_request"
	EventTypeRelease     WebhookEventType = "release"
	EventTypeUnknown     WebhookEventType = "unknown"
)

// WebhookEvent represents a webhook event received from GitHub
type WebhookEvent struct {
	ID         string           // Retrieved from X-GitHub-Delivery header
	Type       WebhookEventType // Retrieved from X-GitHub-Event header
	Action     string           // Event action (e.g., opened, published)
	Repository string           // Repository full name (owner/repo)
	Sender     string           // Sender username
	ReceivedAt time.Time        // Time when the event was received
	RawPayload []byte           // Raw JSON payload

	PullRequest *PullRequestInfo // Set for pull_request events
	Release     *ReleaseInfo     // Set for release events
}

// IsSupportedEvent checks if the event can trigger a workflow run
func (e *WebhookEvent) IsSupportedEvent() bool {
	switch e.Type {
	case EventTypePullRequest:
		switch e.Action {
		case "opened", "synchronize", "reopened", "labeled", "unlabeled":
			return true
		}
		return false
	case EventTypeRelease:
		return e.Action == "published"
	default:
		return false
	}
}

// Owner returns the repository owner part of the full name
func (e *WebhookEvent) Owner() string {
	for i := 0; i < len(e.Repository); i++ {
		if e.Repository[i] == '/' {
			return e.Repository[:i]
		}
	}
	return e.Repository
}

// Repo returns the repository name part of the full name
func (e *WebhookEvent) Repo() string {
	for i := 0; i < len(e.Repository); i++ {
		if e.Repository[i] == '/' {
			return e.Repository[i+1:]
		}
	}
	return ""
}

// HeadSHA returns the commit to report statuses against
func (e *WebhookEvent) HeadSHA() string {
	switch e.Type {
	case EventTypePullRequest:
		if e.PullRequest != nil {
			return e.PullRequest.HeadSHA
		}
	case EventTypeRelease:
		if e.Release != nil {
			return e.Release.CommitSHA
		}
	}
	return ""
}

// PullRequestInfo holds pull request metadata extracted from the event payload
type PullRequestInfo struct {
	Number  int
	Title   string
	Body    string
	HeadSHA string
	HeadRef string
	BaseRef string
	Labels  LabelSet
}

// ReleaseInfo represents information extracted from a release event
type ReleaseInfo struct {
	CommitSHA   string // Commit SHA for the release
	TagName     string // Release tag name
	ReleaseName string // Release name
}

// LabelSet is the unordered set of labels attached to a pull request.
// From the workflow's perspective it is read-only and used purely as
// boolean gates.
type LabelSet map[string]struct{}

// NewLabelSet builds a LabelSet from label names
func NewLabelSet(names ...string) LabelSet {
	s := make(LabelSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether the label is present
func (s LabelSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the label names in unspecified order
func (s LabelSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	return names
}
