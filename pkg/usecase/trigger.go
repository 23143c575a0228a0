package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/google/go-github/v75/github"
	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/runner"
	"github.com/m-mizutani/drover/pkg/utils/async"
	"github.com/m-mizutani/drover/pkg/utils/metrics"
	"github.com/m-mizutani/drover/pkg/workflow"
)

// Trigger plans and executes workflow runs for incoming events. It owns
// the lifecycle of every in-process run: planning, concurrency
// deduplication, execution, persistence and completion reporting.
type Trigger struct {
	store     interfaces.RunStore
	github    interfaces.GitHubClient
	runner    *runner.Runner
	workflows []*model.Workflow

	policy     *model.Policy
	notifier   interfaces.Notifier
	summarizer interfaces.SummaryUseCase

	// mu guards live, the handles of runs executing in this process
	mu   sync.Mutex
	live map[uuid.UUID]*runHandle
}

var (
	_ interfaces.TriggerUseCase = (*Trigger)(nil)
	_ interfaces.RunUseCase     = (*Trigger)(nil)
)

// runHandle tracks a run owned by this process so it can be canceled
// from the outside. The handle is registered when the run is queued;
// the executing goroutine installs cancel once it starts, so a
// cancellation landing before that is kept in canceled and honored
// instead of being overwritten by the start of execution.
type runHandle struct {
	cancel   context.CancelFunc
	canceled bool

	// supersededBy is set before cancel when a newer run took the
	// concurrency group; the executing goroutine records it on the run
	supersededBy string
}

// TriggerOption is a functional option for Trigger configuration
type TriggerOption func(*Trigger)

// WithPolicy restricts which repositories and workflows may run
func WithPolicy(p *model.Policy) TriggerOption {
	return func(t *Trigger) { t.policy = p }
}

// WithNotifier enables run completion notifications
func WithNotifier(n interfaces.Notifier) TriggerOption {
	return func(t *Trigger) { t.notifier = n }
}

// WithSummarizer enables failure summaries on pull requests
func WithSummarizer(s interfaces.SummaryUseCase) TriggerOption {
	return func(t *Trigger) { t.summarizer = s }
}

// NewTrigger creates a Trigger use case
func NewTrigger(
	store interfaces.RunStore,
	githubClient interfaces.GitHubClient,
	r *runner.Runner,
	workflows []*model.Workflow,
	opts ...TriggerOption,
) *Trigger {
	t := &Trigger{
		store:     store,
		github:    githubClient,
		runner:    r,
		workflows: workflows,
		live:      make(map[uuid.UUID]*runHandle),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HandleEvent plans and starts a run for every workflow whose trigger
// matches the event. Execution happens asynchronously; HandleEvent
// returns once all matching runs are persisted as queued.
func (t *Trigger) HandleEvent(ctx context.Context, event *model.WebhookEvent) error {
	logger := ctxlog.From(ctx)

	repoPolicy := t.repoPolicy(event.Repository)
	if t.policyDenies(event.Repository) {
		logger.Warn("Repository not allowed by policy, ignoring event",
			"repository", event.Repository,
		)
		return nil
	}

	for _, wf := range t.workflows {
		if repoPolicy != nil && !repoPolicy.AllowsWorkflow(wf.Name) {
			logger.Info("Workflow not allowed for repository",
				"workflow", wf.Name,
				"repository", event.Repository,
			)
			continue
		}

		plan, err := workflow.BuildPlan(wf, event)
		if err != nil {
			return goerr.Wrap(err, "failed to build plan",
				goerr.V("workflow", wf.Name),
				goerr.V("repository", event.Repository),
			)
		}
		if plan == nil {
			continue
		}
		if plan.Skipped {
			logger.Info("Skip label present, workflow suppressed",
				"workflow", wf.Name,
				"skip_label", wf.SkipLabel,
				"repository", event.Repository,
			)
			continue
		}
		if len(plan.Jobs) == 0 {
			logger.Info("No jobs planned for event",
				"workflow", wf.Name,
				"repository", event.Repository,
			)
			continue
		}

		if err := t.startRun(ctx, plan, event, repoPolicy); err != nil {
			return err
		}
	}

	return nil
}

// startRun persists the planned run, cancels in-flight runs holding the
// same concurrency group, and dispatches execution in the background.
func (t *Trigger) startRun(ctx context.Context, plan *workflow.Plan, event *model.WebhookEvent, repoPolicy *model.RepoPolicy) error {
	logger := ctxlog.From(ctx)
	run := plan.ToRun(event)

	if plan.ConcurrencyKey != "" && plan.CancelInProgress {
		if err := t.supersede(ctx, run); err != nil {
			return err
		}
	}

	// register the handle before the run is visible in the store, so a
	// cancellation racing the dispatch below always finds it live
	t.registerRun(run.ID)

	if err := t.store.PutRun(ctx, run); err != nil {
		t.unregisterRun(run.ID)
		return goerr.Wrap(err, "failed to persist run", goerr.V("run_id", run.ID))
	}

	logger.Info("Run queued",
		"run_id", run.ID,
		"workflow", run.Workflow,
		"repository", run.Repository,
		"jobs", len(run.Jobs),
		"concurrency_key", run.ConcurrencyKey,
	)
	metrics.RunsStarted.WithLabelValues(run.Workflow).Inc()

	var labels model.LabelSet
	if event.PullRequest != nil {
		labels = event.PullRequest.Labels
	}
	wf := plan.Workflow

	async.Dispatch(ctx, func(ctx context.Context) error {
		return t.execute(ctx, run, wf, labels, repoPolicy)
	})

	return nil
}

// supersede cancels unfinished runs that hold the same concurrency key
// as the new run
func (t *Trigger) supersede(ctx context.Context, run *model.Run) error {
	logger := ctxlog.From(ctx)

	inflight, err := t.store.FindInFlight(ctx, run.Repository, run.ConcurrencyKey)
	if err != nil {
		return goerr.Wrap(err, "failed to find in-flight runs",
			goerr.V("repository", run.Repository),
			goerr.V("concurrency_key", run.ConcurrencyKey),
		)
	}

	for _, old := range inflight {
		logger.Info("Canceling superseded run",
			"canceled_run_id", old.ID,
			"superseded_by", run.ID,
			"concurrency_key", run.ConcurrencyKey,
		)

		if t.cancelLive(old.ID, run.ID.String()) {
			// the executing goroutine records the cancellation
			metrics.RunsCanceledBySupersede.Inc()
			continue
		}

		old.MarkCanceled(run.ID.String())
		if err := t.store.PutRun(ctx, old); err != nil {
			return goerr.Wrap(err, "failed to persist canceled run", goerr.V("run_id", old.ID))
		}
		metrics.RunsCanceledBySupersede.Inc()
	}

	return nil
}

// execute runs the planned jobs and drives the run to a terminal state
func (t *Trigger) execute(ctx context.Context, run *model.Run, wf *model.Workflow, labels model.LabelSet, repoPolicy *model.RepoPolicy) error {
	logger := ctxlog.From(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.mu.Lock()
	handle, ok := t.live[run.ID]
	if !ok {
		handle = &runHandle{}
		t.live[run.ID] = handle
	}
	handle.cancel = cancel
	canceled := handle.canceled
	by := handle.supersededBy
	t.mu.Unlock()
	defer t.unregisterRun(run.ID)

	if canceled {
		// canceled while still queued, before execution started
		run.MarkCanceled(by)
		if err := t.store.PutRun(ctx, run); err != nil {
			return goerr.Wrap(err, "failed to persist canceled run", goerr.V("run_id", run.ID))
		}
		logger.Info("Run canceled before execution", "run_id", run.ID, "superseded_by", by)
		metrics.RunsCompleted.WithLabelValues(run.Workflow, string(run.Status)).Inc()
		return nil
	}

	run.MarkRunning()
	if err := t.store.PutRun(ctx, run); err != nil {
		return goerr.Wrap(err, "failed to persist running run", goerr.V("run_id", run.ID))
	}

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	var secrets map[string]string
	if repoPolicy != nil {
		secrets = repoPolicy.Secrets
	}

	input := runner.Input{
		Run:      run,
		Workflow: wf,
		Labels:   labels,
		Secrets:  secrets,
		Hooks: runner.Hooks{
			JobStarted:  t.jobStarted,
			JobFinished: t.jobFinished,
		},
	}

	err := t.runner.Execute(runCtx, input)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		t.mu.Lock()
		by = handle.supersededBy
		t.mu.Unlock()

		run.MarkCanceled(by)
		logger.Info("Run canceled", "run_id", run.ID, "superseded_by", by)
	} else if err != nil {
		return goerr.Wrap(err, "run execution failed", goerr.V("run_id", run.ID))
	} else {
		run.Finish()
	}

	if putErr := t.store.PutRun(ctx, run); putErr != nil {
		return goerr.Wrap(putErr, "failed to persist finished run", goerr.V("run_id", run.ID))
	}

	logger.Info("Run finished",
		"run_id", run.ID,
		"workflow", run.Workflow,
		"status", run.Status,
	)
	metrics.RunsCompleted.WithLabelValues(run.Workflow, string(run.Status)).Inc()

	t.reportCompletion(ctx, run, repoPolicy)

	return nil
}

// reportCompletion delivers the notification and, for failed pull
// request runs, posts a failure summary. Both are best effort.
func (t *Trigger) reportCompletion(ctx context.Context, run *model.Run, repoPolicy *model.RepoPolicy) {
	logger := ctxlog.From(ctx)

	if t.notifier != nil {
		channel := ""
		if repoPolicy != nil {
			channel = repoPolicy.SlackChannel
		}
		if err := t.notifier.NotifyRunCompleted(ctx, run, channel); err != nil {
			logger.Error("Failed to notify run completion", "error", err, "run_id", run.ID)
		}
	}

	if t.summarizer != nil && run.Status == model.RunStatusFailed && run.PullRequest > 0 {
		if err := t.summarizer.SummarizeFailure(ctx, run); err != nil {
			logger.Error("Failed to summarize run failure", "error", err, "run_id", run.ID)
		}
	}
}

// jobStarted reports a pending commit status for the job instance.
// Hooks run on the job's goroutine while sibling jobs execute, so they
// must not touch the run beyond their own job; the run record is
// persisted at queue, start and finish instead.
func (t *Trigger) jobStarted(ctx context.Context, run *model.Run, job *model.JobRun) {
	t.postCommitStatus(ctx, run, job, "pending", "in progress")
}

// jobFinished reports the job outcome as a commit status and records
// metrics
func (t *Trigger) jobFinished(ctx context.Context, run *model.Run, job *model.JobRun) {
	state, description := commitState(job.Status)
	t.postCommitStatus(ctx, run, job, state, description)

	if job.StartedAt != nil && job.FinishedAt != nil {
		metrics.JobDuration.WithLabelValues(run.Workflow, job.JobID, string(job.Status)).
			Observe(job.FinishedAt.Sub(*job.StartedAt).Seconds())
	}
}

// postCommitStatus reports a commit status for one job instance. The
// status context carries the workflow and instance ID, so each matrix
// cell shows up as its own check.
func (t *Trigger) postCommitStatus(ctx context.Context, run *model.Run, job *model.JobRun, state, description string) {
	if run.CommitSHA == "" {
		return
	}
	logger := ctxlog.From(ctx)

	statusContext := run.Workflow + " / " + job.ID
	status := &github.RepoStatus{
		State:       github.String(state),
		Context:     github.String(statusContext),
		Description: github.String(description),
	}

	owner, repo := splitFullName(run.Repository)
	if err := t.github.CreateCommitStatus(ctx, owner, repo, run.CommitSHA, status); err != nil {
		logger.Error("Failed to create commit status",
			"error", err,
			"repository", run.Repository,
			"sha", run.CommitSHA,
			"context", statusContext,
		)
	}
}

// registerRun creates the live handle for a run being queued
func (t *Trigger) registerRun(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live[id] = &runHandle{}
}

func (t *Trigger) unregisterRun(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, id)
}

// cancelLive cancels a run owned by this process. It returns false
// when the run is not live here.
func (t *Trigger) cancelLive(id uuid.UUID, supersededBy string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	handle, ok := t.live[id]
	if !ok {
		return false
	}
	handle.supersededBy = supersededBy
	handle.canceled = true
	if handle.cancel != nil {
		handle.cancel()
	}
	return true
}

// repoPolicy returns the policy entry for the repository, if any
func (t *Trigger) repoPolicy(repository string) *model.RepoPolicy {
	if t.policy == nil {
		return nil
	}
	return t.policy.Repo(repository)
}

// policyDenies reports whether the policy lists repositories and the
// given one is not among them. An empty policy allows everything.
func (t *Trigger) policyDenies(repository string) bool {
	if t.policy == nil || len(t.policy.Repositories) == 0 {
		return false
	}
	return t.policy.Repo(repository) == nil
}

// commitState maps a job status to a GitHub commit status state
func commitState(s model.JobStatus) (state, description string) {
	switch s {
	case model.JobStatusSucceeded:
		return "success", "succeeded"
	case model.JobStatusFailed:
		return "failure", "failed"
	case model.JobStatusSkipped:
		return "success", "skipped"
	case model.JobStatusCanceled:
		return "error", "canceled"
	default:
		return "pending", string(s)
	}
}

func splitFullName(fullName string) (owner, repo string) {
	for i := 0; i < len(fullName); i++ {
		if fullName[i] == '/' {
			return fullName[:i], fullName[i+1:]
		}
	}
	return fullName, ""
}
