package github_test

import (
	"context"
	"testing"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/gt"

	githubcontroller "github.com/m-mizutani/drover/pkg/controller/github"
	"github.com/m-mizutani/drover/pkg/domain/model"
)

// MockWebhookUseCase records processed events
type MockWebhookUseCase struct {
	events []*model.WebhookEvent
}

func (m *MockWebhookUseCase) ProcessEvent(_ context.Context, event *model.WebhookEvent) error {
	m.events = append(m.events, event)
	return nil
}

func TestEventProcessor_PullRequestEvent(t *testing.T) {
	ctx := context.Background()
	mockUC := &MockWebhookUseCase{}
	processor := githubcontroller.NewEventProcessor(mockUC)

	payload := &github.PullRequestEvent{
		Action: github.Ptr("synchronize"),
		Repo: &github.Repository{
			FullName: github.Ptr("acme/seismo"),
			Owner:    &github.User{Login: github.Ptr("acme")},
			Name:     github.Ptr("seismo"),
		},
		Sender: &github.User{Login: github.Ptr("octocat")},
		PullRequest: &github.PullRequest{
			Number: github.Ptr(42),
			Title:  github.Ptr("Fix flaky test"),
			Head: &github.PullRequestBranch{
				SHA: github.Ptr("abc1234"),
				Ref: github.Ptr("fix/flaky"),
			},
			Base: &github.PullRequestBranch{
				Ref: github.Ptr("main"),
			},
			Labels: []*github.Label{
				{Name: github.Ptr("test_network")},
			},
		},
	}

	event := &model.WebhookEvent{
		ID:   "delivery-1",
		Type: model.EventTypePullRequest,
	}
	gt.NoError(t, processor.ProcessEvent(ctx, event, payload))

	gt.V(t, len(mockUC.events)).Equal(1)
	got := mockUC.events[0]
	gt.V(t, got.Action).Equal("synchronize")
	gt.V(t, got.Repository).Equal("acme/seismo")
	gt.V(t, got.Sender).Equal("octocat")
	gt.NotNil(t, got.PullRequest)
	gt.V(t, got.PullRequest.Number).Equal(42)
	gt.V(t, got.PullRequest.HeadSHA).Equal("abc1234")
	gt.V(t, got.PullRequest.BaseRef).Equal("main")
	gt.True(t, got.PullRequest.Labels.Has("test_network"))
}

func TestEventProcessor_PullRequestMissingHead(t *testing.T) {
	ctx := context.Background()
	mockUC := &MockWebhookUseCase{}
	processor := githubcontroller.NewEventProcessor(mockUC)

	payload := &github.PullRequestEvent{
		Action: github.Ptr("opened"),
		Repo: &github.Repository{
			FullName: github.Ptr("acme/seismo"),
		},
		PullRequest: &github.PullRequest{
			Number: github.Ptr(42),
		},
	}

	event := &model.WebhookEvent{Type: model.EventTypePullRequest}
	err := processor.ProcessEvent(ctx, event, payload)
	gt.True(t, err != nil)
	gt.V(t, len(mockUC.events)).Equal(0)
}

func TestEventProcessor_ReleaseEvent(t *testing.T) {
	ctx := context.Background()
	mockUC := &MockWebhookUseCase{}
	processor := githubcontroller.NewEventProcessor(mockUC)

	payload := &github.ReleaseEvent{
		Action: github.Ptr("published"),
		Repo: &github.Repository{
			FullName: github.Ptr("acme/seismo"),
		},
		Sender: &github.User{Login: github.Ptr("octocat")},
		Release: &github.RepositoryRelease{
			TagName:         github.Ptr("v1.2.3"),
			Name:            github.Ptr("Release v1.2.3"),
			TargetCommitish: github.Ptr("def5678"),
		},
	}

	event := &model.WebhookEvent{Type: model.EventTypeRelease}
	gt.NoError(t, processor.ProcessEvent(ctx, event, payload))

	gt.V(t, len(mockUC.events)).Equal(1)
	got := mockUC.events[0]
	gt.V(t, got.Action).Equal("published")
	gt.NotNil(t, got.Release)
	gt.V(t, got.Release.TagName).Equal("v1.2.3")
	gt.V(t, got.Release.CommitSHA).Equal("def5678")
}

func TestEventProcessor_UnknownPayload(t *testing.T) {
	ctx := context.Background()
	mockUC := &MockWebhookUseCase{}
	processor := githubcontroller.NewEventProcessor(mockUC)

	event := &model.WebhookEvent{Type: model.WebhookEventType("push")}
	gt.NoError(t, processor.ProcessEvent(ctx, event, &github.PushEvent{}))

	gt.V(t, len(mockUC.events)).Equal(1)
	gt.V(t, mockUC.events[0].Type).Equal(model.EventTypeUnknown)
}
