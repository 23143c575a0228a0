package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/drover/pkg/utils/async"
	"github.com/m-mizutani/drover/pkg/utils/metrics"
	"github.com/m-mizutani/drover/pkg/workflow"
)

const defaultListLimit = 50

// ListRuns returns recent runs, newest first
func (t *Trigger) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	runs, err := t.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list runs")
	}
	return runs, nil
}

// GetRun returns a single run by ID
func (t *Trigger) GetRun(ctx context.Context, id uuid.UUID) (*model.Run, error) {
	run, err := t.store.GetRun(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get run", goerr.V("run_id", id))
	}
	return run, nil
}

// CancelRun cancels an in-flight run. When the run executes in this
// process its context is canceled and the executor records the result;
// otherwise the stored record is marked canceled directly.
func (t *Trigger) CancelRun(ctx context.Context, id uuid.UUID) error {
	logger := ctxlog.From(ctx)

	run, err := t.store.GetRun(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to get run", goerr.V("run_id", id))
	}
	if run.Status.IsFinished() {
		return goerr.Wrap(types.ErrRunNotCancelable, "cannot cancel run",
			goerr.V("run_id", id), goerr.V("status", run.Status))
	}

	logger.Info("Canceling run", "run_id", id, "status", run.Status)

	if t.cancelLive(id, "") {
		return nil
	}

	run.MarkCanceled("")
	if err := t.store.PutRun(ctx, run); err != nil {
		return goerr.Wrap(err, "failed to persist canceled run", goerr.V("run_id", id))
	}
	return nil
}

// RerunRun re-triggers a finished run as a fresh run against the same
// commit. Labels are re-read from the pull request, so label gates
// reflect the current label set rather than the original event.
func (t *Trigger) RerunRun(ctx context.Context, id uuid.UUID) (*model.Run, error) {
	logger := ctxlog.From(ctx)

	run, err := t.store.GetRun(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get run", goerr.V("run_id", id))
	}
	if !run.Status.IsFinished() {
		return nil, goerr.Wrap(types.ErrRunNotFinished, "cannot re-run",
			goerr.V("run_id", id), goerr.V("status", run.Status))
	}

	wf := t.findWorkflow(run.Workflow)
	if wf == nil {
		return nil, goerr.New("workflow no longer configured", goerr.V("workflow", run.Workflow))
	}

	event, err := t.rebuildEvent(ctx, run)
	if err != nil {
		return nil, err
	}

	plan, err := workflow.BuildPlan(wf, event)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build plan", goerr.V("workflow", wf.Name))
	}
	if plan == nil || plan.Skipped || len(plan.Jobs) == 0 {
		return nil, goerr.New("event no longer triggers the workflow",
			goerr.V("workflow", wf.Name), goerr.V("run_id", id))
	}

	logger.Info("Re-running", "run_id", id, "workflow", wf.Name)

	repoPolicy := t.repoPolicy(run.Repository)
	newRun := plan.ToRun(event)
	t.registerRun(newRun.ID)
	if err := t.store.PutRun(ctx, newRun); err != nil {
		t.unregisterRun(newRun.ID)
		return nil, goerr.Wrap(err, "failed to persist run", goerr.V("run_id", newRun.ID))
	}
	metrics.RunsStarted.WithLabelValues(newRun.Workflow).Inc()

	var labels model.LabelSet
	if event.PullRequest != nil {
		labels = event.PullRequest.Labels
	}

	async.Dispatch(ctx, func(ctx context.Context) error {
		return t.execute(ctx, newRun, wf, labels, repoPolicy)
	})

	return newRun, nil
}

// rebuildEvent reconstructs a trigger event from a stored run
func (t *Trigger) rebuildEvent(ctx context.Context, run *model.Run) (*model.WebhookEvent, error) {
	event := &model.WebhookEvent{
		Type:       model.WebhookEventType(run.EventType),
		Action:     run.EventAction,
		Repository: run.Repository,
	}

	switch event.Type {
	case model.EventTypePullRequest:
		labels, err := t.github.ListLabels(ctx, event.Owner(), event.Repo(), run.PullRequest)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list pull request labels",
				goerr.V("repository", run.Repository), goerr.V("number", run.PullRequest))
		}
		event.PullRequest = &model.PullRequestInfo{
			Number:  run.PullRequest,
			HeadSHA: run.CommitSHA,
			HeadRef: run.Ref,
			Labels:  labels,
		}
	case model.EventTypeRelease:
		event.Release = &model.ReleaseInfo{
			CommitSHA: run.CommitSHA,
			TagName:   run.Ref,
		}
	default:
		return nil, goerr.New("unsupported event type for re-run", goerr.V("type", run.EventType))
	}

	return event, nil
}

func (t *Trigger) findWorkflow(name string) *model.Workflow {
	for _, wf := range t.workflows {
		if wf.Name == name {
			return wf
		}
	}
	return nil
}
