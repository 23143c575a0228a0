package github

import (
	"context"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
)

// EventProcessor enriches webhook events with payload details and hands
// them to the webhook use case
type EventProcessor struct {
	webhookUC interfaces.WebhookUseCase
}

// NewEventProcessor creates a new GitHub event processor
func NewEventProcessor(webhookUC interfaces.WebhookUseCase) *EventProcessor {
	return &EventProcessor{
		webhookUC: webhookUC,
	}
}

// ProcessEvent extracts event-specific fields from the parsed payload
// into the webhook event and processes it
func (p *EventProcessor) ProcessEvent(ctx context.Context, event *model.WebhookEvent, payload any) error {
	logger := ctxlog.From(ctx)

	switch e := payload.(type) {
	case *github.PullRequestEvent:
		info, err := extractPullRequestInfo(e)
		if err != nil {
			logger.Error("Failed to extract pull request info", "error", err)
			return err
		}
		event.Action = e.GetAction()
		event.Repository = e.GetRepo().GetFullName()
		event.Sender = e.GetSender().GetLogin()
		event.PullRequest = info

	case *github.ReleaseEvent:
		info, err := extractReleaseInfo(e)
		if err != nil {
			logger.Error("Failed to extract release info", "error", err)
			return err
		}
		event.Action = e.GetAction()
		event.Repository = e.GetRepo().GetFullName()
		event.Sender = e.GetSender().GetLogin()
		event.Release = info

	default:
		logger.Info("Ignoring unsupported event type", "event_type", event.Type)
		event.Type = model.EventTypeUnknown
	}

	return p.webhookUC.ProcessEvent(ctx, event)
}

// extractPullRequestInfo extracts pull request metadata from the event
// payload. Labels are taken from the payload as delivered; gates see
// the label set at trigger time.
func extractPullRequestInfo(event *github.PullRequestEvent) (*model.PullRequestInfo, error) {
	pr := event.GetPullRequest()
	if pr == nil {
		return nil, goerr.New("missing pull request information in event")
	}

	headSHA := pr.GetHead().GetSHA()
	if event.GetRepo().GetFullName() == "" || pr.GetNumber() == 0 || headSHA == "" {
		return nil, goerr.New("missing required fields in pull request event",
			goerr.V("repository", event.GetRepo().GetFullName()),
			goerr.V("number", pr.GetNumber()),
			goerr.V("head_sha", headSHA),
		)
	}

	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	return &model.PullRequestInfo{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		HeadSHA: headSHA,
		HeadRef: pr.GetHead().GetRef(),
		BaseRef: pr.GetBase().GetRef(),
		Labels:  model.NewLabelSet(labels...),
	}, nil
}

// extractReleaseInfo extracts release information from the event payload
func extractReleaseInfo(event *github.ReleaseEvent) (*model.ReleaseInfo, error) {
	release := event.GetRelease()
	if release == nil {
		return nil, goerr.New("missing release information in event")
	}

	commitSHA := release.GetTargetCommitish()
	if event.GetRepo().GetFullName() == "" || commitSHA == "" {
		return nil, goerr.New("missing required fields in release event",
			goerr.V("repository", event.GetRepo().GetFullName()),
			goerr.V("commit_sha", commitSHA),
		)
	}

	return &model.ReleaseInfo{
		CommitSHA:   commitSHA,
		TagName:     release.GetTagName(),
		ReleaseName: release.GetName(),
	}, nil
}
