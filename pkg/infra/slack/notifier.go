package slack

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
)

// Notifier posts run completion notifications to a Slack webhook
type Notifier struct {
	webhookURL string
}

var _ interfaces.Notifier = (*Notifier)(nil)

// New creates a Notifier for the given incoming webhook URL
func New(webhookURL string) *Notifier {
	return &Notifier{webhookURL: webhookURL}
}

// NotifyRunCompleted posts a summary of a finished run. The channel
// argument overrides the webhook's default channel when non-empty.
func (n *Notifier) NotifyRunCompleted(ctx context.Context, run *model.Run, channel string) error {
	color := "good"
	if run.Status == model.RunStatusFailed {
		color = "danger"
	} else if run.Status == model.RunStatusCanceled {
		color = "warning"
	}

	var duration time.Duration
	if run.StartedAt != nil && run.FinishedAt != nil {
		duration = run.FinishedAt.Sub(*run.StartedAt).Round(time.Second)
	}

	fields := []slack.AttachmentField{
		{Title: "Repository", Value: run.Repository, Short: true},
		{Title: "Status", Value: string(run.Status), Short: true},
		{Title: "Event", Value: run.EventType, Short: true},
		{Title: "Duration", Value: duration.String(), Short: true},
	}
	if run.PullRequest > 0 {
		fields = append(fields, slack.AttachmentField{
			Title: "Pull Request", Value: fmt.Sprintf("#%d", run.PullRequest), Short: true,
		})
	}
	if failed := run.FailedJobs(); len(failed) > 0 {
		names := ""
		for i, j := range failed {
			if i > 0 {
				names += ", "
			}
			names += j.ID
		}
		fields = append(fields, slack.AttachmentField{Title: "Failed Jobs", Value: names})
	}

	msg := &slack.WebhookMessage{
		Channel: channel,
		Attachments: []slack.Attachment{
			{
				Color:  color,
				Title:  fmt.Sprintf("Workflow %s: %s", run.Workflow, run.Status),
				Fields: fields,
				Footer: "drover",
			},
		},
	}

	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post slack notification", goerr.V("run_id", run.ID))
	}
	return nil
}
