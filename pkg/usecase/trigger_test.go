package usecase_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/google/uuid"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/drover/pkg/infra/memory"
	"github.com/m-mizutani/drover/pkg/runner"
	"github.com/m-mizutani/drover/pkg/usecase"
	"github.com/m-mizutani/drover/pkg/workflow"
)

type mockGitHub struct {
	mu       sync.Mutex
	statuses []string
	comments []string
	labels   model.LabelSet
}

func (m *mockGitHub) DownloadZipball(_ context.Context, _, _, _ string) ([]byte, error) {
	return nil, errors.New("no zipball in test")
}

func (m *mockGitHub) CreateComment(_ context.Context, _, _ string, _ int, c *github.IssueComment) (*github.IssueComment, *github.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments = append(m.comments, c.GetBody())
	return c, nil, nil
}

func (m *mockGitHub) CreateCommitStatus(_ context.Context, _, _, sha string, status *github.RepoStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, sha+" "+status.GetContext()+" "+status.GetState())
	return nil
}

func (m *mockGitHub) ListLabels(_ context.Context, _, _ string, _ int) (model.LabelSet, error) {
	if m.labels == nil {
		return model.LabelSet{}, nil
	}
	return m.labels, nil
}

func (m *mockGitHub) statusList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.statuses...)
}

const triggerYAML = `
name: pr
on:
  event: pull_request
  actions: [opened, synchronize]
skip-label: no_ci
concurrency:
  group: "pr-{{ .Number }}"
  cancel-in-progress: true
jobs:
  - id: lint
    steps:
      - run: "true"
  - id: test
    needs: [lint]
    steps:
      - run: "true"
`

func parseWorkflows(t *testing.T, yamls ...string) []*model.Workflow {
	t.Helper()
	var out []*model.Workflow
	for _, y := range yamls {
		out = append(out, gt.R1(workflow.Parse([]byte(y))).NoError(t))
	}
	return out
}

func prEvent(number int, labels ...string) *model.WebhookEvent {
	return &model.WebhookEvent{
		ID:         "delivery-1",
		Type:       model.EventTypePullRequest,
		Action:     "opened",
		Repository: "acme/seismo",
		Sender:     "octocat",
		ReceivedAt: time.Now(),
		PullRequest: &model.PullRequestInfo{
			Number:  number,
			HeadSHA: "abc1234",
			HeadRef: "feature/x",
			Labels:  model.NewLabelSet(labels...),
		},
	}
}

// waitRun polls the store until the run reaches a terminal state
func waitRun(t *testing.T, store interfaces.RunStore, id uuid.UUID) *model.Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := store.GetRun(context.Background(), id)
		if err == nil && run.Status.IsFinished() {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run did not finish in time")
	return nil
}

func latestRun(t *testing.T, store interfaces.RunStore) *model.Run {
	t.Helper()
	runs := gt.R1(store.ListRuns(context.Background(), 10)).NoError(t)
	gt.True(t, len(runs) > 0)
	return runs[0]
}

func TestTriggerHandleEvent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gh := &mockGitHub{}
	r := runner.New(gh, runner.WithWorkspaceRoot(t.TempDir()))
	trigger := usecase.NewTrigger(store, gh, r, parseWorkflows(t, triggerYAML))

	gt.NoError(t, trigger.HandleEvent(ctx, prEvent(7)))

	queued := latestRun(t, store)
	run := waitRun(t, store, queued.ID)

	gt.V(t, run.Status).Equal(model.RunStatusSucceeded)
	gt.V(t, run.Workflow).Equal("pr")
	gt.V(t, run.ConcurrencyKey).Equal("pr-7")
	gt.V(t, len(run.Jobs)).Equal(2)
	for _, j := range run.Jobs {
		gt.V(t, j.Status).Equal(model.JobStatusSucceeded)
	}

	// each job reports pending then a terminal commit status
	statuses := gh.statusList()
	gt.V(t, len(statuses)).Equal(4)
	gt.True(t, slices.Contains(statuses, "abc1234 pr / lint success"))
	gt.True(t, slices.Contains(statuses, "abc1234 pr / test success"))
}

func TestTriggerSkipLabel(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gh := &mockGitHub{}
	r := runner.New(gh, runner.WithWorkspaceRoot(t.TempDir()))
	trigger := usecase.NewTrigger(store, gh, r, parseWorkflows(t, triggerYAML))

	gt.NoError(t, trigger.HandleEvent(ctx, prEvent(7, "no_ci")))

	runs := gt.R1(store.ListRuns(ctx, 10)).NoError(t)
	gt.V(t, len(runs)).Equal(0)
}

func TestTriggerTriggerMismatch(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gh := &mockGitHub{}
	r := runner.New(gh, runner.WithWorkspaceRoot(t.TempDir()))
	trigger := usecase.NewTrigger(store, gh, r, parseWorkflows(t, triggerYAML))

	event := prEvent(7)
	event.Action = "labeled"
	gt.NoError(t, trigger.HandleEvent(ctx, event))

	runs := gt.R1(store.ListRuns(ctx, 10)).NoError(t)
	gt.V(t, len(runs)).Equal(0)
}

func TestTriggerSupersedesInFlightRun(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gh := &mockGitHub{}
	r := runner.New(gh, runner.WithWorkspaceRoot(t.TempDir()))
	trigger := usecase.NewTrigger(store, gh, r, parseWorkflows(t, triggerYAML))

	// a stale run holds the concurrency group, e.g. left over from a
	// previous process
	stale := model.NewRun("pr", prEvent(7))
	stale.ConcurrencyKey = "pr-7"
	stale.MarkRunning()
	gt.NoError(t, store.PutRun(ctx, stale))

	gt.NoError(t, trigger.HandleEvent(ctx, prEvent(7)))

	canceled := gt.R1(store.GetRun(ctx, stale.ID)).NoError(t)
	gt.V(t, canceled.Status).Equal(model.RunStatusCanceled)
	gt.V(t, canceled.CanceledBy).NotEqual("")

	// a run for another pull request is left alone
	other := model.NewRun("pr", prEvent(8))
	other.ConcurrencyKey = "pr-8"
	other.MarkRunning()
	gt.NoError(t, store.PutRun(ctx, other))

	gt.NoError(t, trigger.HandleEvent(ctx, prEvent(7)))

	kept := gt.R1(store.GetRun(ctx, other.ID)).NoError(t)
	gt.V(t, kept.Status).Equal(model.RunStatusRunning)
}

func TestTriggerPolicy(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gh := &mockGitHub{}
	r := runner.New(gh, runner.WithWorkspaceRoot(t.TempDir()))
	policy := &model.Policy{
		Repositories: []model.RepoPolicy{
			{Name: "acme/other"},
		},
	}
	trigger := usecase.NewTrigger(store, gh, r, parseWorkflows(t, triggerYAML),
		usecase.WithPolicy(policy))

	gt.NoError(t, trigger.HandleEvent(ctx, prEvent(7)))

	runs := gt.R1(store.ListRuns(ctx, 10)).NoError(t)
	gt.V(t, len(runs)).Equal(0)
}

func TestCancelRun(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gh := &mockGitHub{}
	r := runner.New(gh, runner.WithWorkspaceRoot(t.TempDir()))
	trigger := usecase.NewTrigger(store, gh, r, parseWorkflows(t, triggerYAML))

	t.Run("unknown run", func(t *testing.T) {
		err := trigger.CancelRun(ctx, uuid.New())
		gt.True(t, errors.Is(err, types.ErrRunNotFound))
	})

	t.Run("finished run", func(t *testing.T) {
		run := model.NewRun("pr", prEvent(7))
		run.Finish()
		gt.NoError(t, store.PutRun(ctx, run))

		err := trigger.CancelRun(ctx, run.ID)
		gt.True(t, errors.Is(err, types.ErrRunNotCancelable))
	})

	t.Run("queued run", func(t *testing.T) {
		run := model.NewRun("pr", prEvent(7))
		gt.NoError(t, store.PutRun(ctx, run))

		gt.NoError(t, trigger.CancelRun(ctx, run.ID))

		got := gt.R1(store.GetRun(ctx, run.ID)).NoError(t)
		gt.V(t, got.Status).Equal(model.RunStatusCanceled)
	})
}

const slowTriggerYAML = `
name: slow
on:
  event: pull_request
  actions: [opened]
jobs:
  - id: test
    steps:
      - run: "sleep 30"
`

func TestCancelRunWhileQueued(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gh := &mockGitHub{}
	r := runner.New(gh, runner.WithWorkspaceRoot(t.TempDir()))
	trigger := usecase.NewTrigger(store, gh, r, parseWorkflows(t, slowTriggerYAML))

	gt.NoError(t, trigger.HandleEvent(ctx, prEvent(7)))
	queued := latestRun(t, store)

	// the run is persisted before execution begins; a cancellation in
	// that window must stick instead of being overwritten when the
	// executor starts
	gt.NoError(t, trigger.CancelRun(ctx, queued.ID))

	run := waitRun(t, store, queued.ID)
	gt.V(t, run.Status).Equal(model.RunStatusCanceled)
	for _, j := range run.Jobs {
		gt.True(t, j.Status != model.JobStatusSucceeded)
	}
}

func TestRerunRun(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gh := &mockGitHub{labels: model.NewLabelSet()}
	r := runner.New(gh, runner.WithWorkspaceRoot(t.TempDir()))
	trigger := usecase.NewTrigger(store, gh, r, parseWorkflows(t, triggerYAML))

	t.Run("in-flight run", func(t *testing.T) {
		run := model.NewRun("pr", prEvent(7))
		gt.NoError(t, store.PutRun(ctx, run))

		_, err := trigger.RerunRun(ctx, run.ID)
		gt.True(t, errors.Is(err, types.ErrRunNotFinished))
	})

	t.Run("failed run gets a fresh run", func(t *testing.T) {
		old := model.NewRun("pr", prEvent(7))
		old.Status = model.RunStatusFailed
		now := time.Now().UTC()
		old.FinishedAt = &now
		gt.NoError(t, store.PutRun(ctx, old))

		fresh := gt.R1(trigger.RerunRun(ctx, old.ID)).NoError(t)
		gt.V(t, fresh.ID).NotEqual(old.ID)
		gt.V(t, fresh.Workflow).Equal("pr")
		gt.V(t, fresh.CommitSHA).Equal(old.CommitSHA)

		done := waitRun(t, store, fresh.ID)
		gt.V(t, done.Status).Equal(model.RunStatusSucceeded)
	})

	t.Run("skip label added after the fact blocks re-run", func(t *testing.T) {
		old := model.NewRun("pr", prEvent(9))
		old.Status = model.RunStatusFailed
		now := time.Now().UTC()
		old.FinishedAt = &now
		gt.NoError(t, store.PutRun(ctx, old))

		gh.labels = model.NewLabelSet("no_ci")
		defer func() { gh.labels = model.NewLabelSet() }()

		_, err := trigger.RerunRun(ctx, old.ID)
		gt.True(t, err != nil)
	})
}

func TestWebhookUseCase(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gh := &mockGitHub{}
	r := runner.New(gh, runner.WithWorkspaceRoot(t.TempDir()))
	trigger := usecase.NewTrigger(store, gh, r, parseWorkflows(t, triggerYAML))
	uc := usecase.NewWebhook(trigger)

	t.Run("supported event starts a run", func(t *testing.T) {
		gt.NoError(t, uc.ProcessEvent(ctx, prEvent(7)))
		runs := gt.R1(store.ListRuns(ctx, 10)).NoError(t)
		gt.V(t, len(runs)).Equal(1)
		waitRun(t, store, runs[0].ID)
	})

	t.Run("unsupported event is dropped", func(t *testing.T) {
		event := prEvent(7)
		event.Action = "closed"
		gt.NoError(t, uc.ProcessEvent(ctx, event))
		runs := gt.R1(store.ListRuns(ctx, 10)).NoError(t)
		gt.V(t, len(runs)).Equal(1)
	})
}
