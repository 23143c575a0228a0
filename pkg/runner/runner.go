package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/workflow"
)

const defaultMaxParallel = 4

// Hooks receives job lifecycle callbacks during execution. Callbacks
// run synchronously on the job's goroutine; keep them fast.
type Hooks struct {
	JobStarted  func(ctx context.Context, run *model.Run, job *model.JobRun)
	JobFinished func(ctx context.Context, run *model.Run, job *model.JobRun)
}

// Runner executes planned job instances locally: it schedules jobs in
// dependency waves, runs each job's steps in its own workspace, and
// records results on the run in place.
type Runner struct {
	github    interfaces.GitHubClient
	artifacts interfaces.ArtifactStore
	reports   interfaces.ReportClient

	workspaceRoot string
	maxParallel   int
}

// Option is a functional option for Runner configuration
type Option func(*Runner)

// WithArtifactStore enables artifact upload steps
func WithArtifactStore(s interfaces.ArtifactStore) Option {
	return func(r *Runner) { r.artifacts = s }
}

// WithReportClient enables coverage and publish steps
func WithReportClient(c interfaces.ReportClient) Option {
	return func(r *Runner) { r.reports = c }
}

// WithWorkspaceRoot sets the parent directory for job workspaces
func WithWorkspaceRoot(dir string) Option {
	return func(r *Runner) { r.workspaceRoot = dir }
}

// WithMaxParallel bounds concurrent job execution
func WithMaxParallel(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxParallel = n
		}
	}
}

// New creates a Runner. The GitHub client is required for checkout
// steps; other capabilities are optional.
func New(github interfaces.GitHubClient, opts ...Option) *Runner {
	r := &Runner{
		github:        github,
		workspaceRoot: os.TempDir(),
		maxParallel:   defaultMaxParallel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Input bundles everything the Runner needs for one run
type Input struct {
	Run      *model.Run
	Workflow *model.Workflow
	Labels   model.LabelSet
	Secrets  map[string]string
	Hooks    Hooks
}

// Execute runs all job instances of the run. Jobs whose dependencies
// are satisfied run concurrently; a job whose dependency finished
// without success is skipped. One matrix cell failing does not affect
// its siblings unless the strategy sets fail-fast. Execute mutates
// input.Run and returns an error only for infrastructure failures or
// context cancellation, never for job failures.
func (r *Runner) Execute(ctx context.Context, input Input) error {
	run := input.Run
	logger := ctxlog.From(ctx)

	// failFast contexts are shared by all cells of a fail-fast matrix
	// job: the first failing cell cancels its siblings
	failFast := make(map[string]context.CancelFunc)
	failFastCtx := make(map[string]context.Context)
	for i := range run.Jobs {
		jobID := run.Jobs[i].JobID
		if _, ok := failFastCtx[jobID]; ok {
			continue
		}
		def := input.Workflow.Job(jobID)
		if def != nil && def.Strategy != nil && def.Strategy.FailFast {
			c, cancel := context.WithCancel(ctx)
			failFastCtx[jobID] = c
			failFast[jobID] = cancel
		}
	}
	defer func() {
		for _, cancel := range failFast {
			cancel()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			r.cancelPending(run)
			return goerr.Wrap(err, "run execution canceled")
		}

		// skip jobs that can never start before looking for ready
		// ones. Skipping a job can block its own dependents, so repeat
		// until no new blockage appears.
		for {
			blocked := workflow.BlockedJobs(run)
			if len(blocked) == 0 {
				break
			}
			for _, job := range blocked {
				job.Status = model.JobStatusSkipped
				logger.Info("Skipping job with failed dependency", "run_id", run.ID, "job", job.ID)
				if input.Hooks.JobFinished != nil {
					input.Hooks.JobFinished(ctx, run, job)
				}
			}
		}

		ready := workflow.ReadyJobs(run)
		if len(ready) == 0 {
			break
		}

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(r.maxParallel)

		for _, job := range ready {
			eg.Go(func() error {
				jobCtx := egCtx
				if c, ok := failFastCtx[job.JobID]; ok {
					jobCtx = mergeCancel(egCtx, c)
				}

				r.executeJob(jobCtx, input, job)

				if job.Status == model.JobStatusFailed {
					if cancel, ok := failFast[job.JobID]; ok {
						cancel()
					}
				}
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return goerr.Wrap(err, "job wave failed")
		}
	}

	return nil
}

// executeJob runs a single job instance: workspace setup, step loop,
// result recording. Job failures are recorded, not returned.
func (r *Runner) executeJob(ctx context.Context, input Input, job *model.JobRun) {
	run := input.Run
	logger := ctxlog.From(ctx)

	now := time.Now().UTC()
	job.Status = model.JobStatusRunning
	job.StartedAt = &now
	if input.Hooks.JobStarted != nil {
		input.Hooks.JobStarted(ctx, run, job)
	}

	def := input.Workflow.Job(job.JobID)
	if def == nil {
		r.finishJob(ctx, input, job, model.JobStatusFailed)
		logger.Error("Job definition not found", "run_id", run.ID, "job", job.ID)
		return
	}

	if def.TimeoutMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(def.TimeoutMinutes)*time.Minute)
		defer cancel()
	}

	workdir, err := os.MkdirTemp(r.workspaceRoot, "drover-job-*")
	if err != nil {
		job.Steps = append(job.Steps, model.StepResult{
			Name:   "workspace",
			Status: model.JobStatusFailed,
			Error:  err.Error(),
		})
		r.finishJob(ctx, input, job, model.JobStatusFailed)
		return
	}
	defer func() {
		if removeErr := os.RemoveAll(workdir); removeErr != nil {
			logger.Warn("Failed to clean up job workspace",
				"workdir", workdir, "error", removeErr)
		}
	}()

	env := r.jobEnv(input, job, def)

	exec := &jobExecution{
		runner:  r,
		input:   input,
		job:     job,
		def:     def,
		workdir: workdir,
		srcDir:  workdir,
		env:     env,
	}

	failed := false
	for i := range def.Steps {
		step := &def.Steps[i]
		cond := workflow.Condition(step.If)

		result := model.StepResult{
			Name:            stepName(step, i),
			Kind:            string(step.Kind()),
			ContinueOnError: step.ContinueOnError,
		}

		switch {
		case failed && !cond.Always():
			result.Status = model.JobStatusSkipped
		case !cond.Eval(input.Labels):
			result.Status = model.JobStatusSkipped
		default:
			start := time.Now()
			err := exec.runStep(ctx, step)
			result.Duration = time.Since(start)
			result.Output = exec.lastOutput
			if err != nil {
				result.Status = model.JobStatusFailed
				result.Error = err.Error()
				if !step.ContinueOnError {
					failed = true
				}
				logger.Info("Step failed",
					"run_id", run.ID, "job", job.ID, "step", result.Name,
					"continue_on_error", step.ContinueOnError, "error", err)
			} else {
				result.Status = model.JobStatusSucceeded
			}
		}

		job.Steps = append(job.Steps, result)
	}

	status := model.JobStatusSucceeded
	if failed {
		status = model.JobStatusFailed
	}
	// a cancellation mid-step also surfaces as a failed step, so the
	// context decides: canceled by a fail-fast sibling or by the run
	// is canceled, not failed. A job timeout stays a failure.
	if errors.Is(ctx.Err(), context.Canceled) {
		status = model.JobStatusCanceled
	}
	r.finishJob(ctx, input, job, status)
}

func (r *Runner) finishJob(ctx context.Context, input Input, job *model.JobRun, status model.JobStatus) {
	now := time.Now().UTC()
	job.Status = status
	job.FinishedAt = &now
	if input.Hooks.JobFinished != nil {
		input.Hooks.JobFinished(ctx, input.Run, job)
	}
}

// cancelPending marks all unfinished jobs canceled
func (r *Runner) cancelPending(run *model.Run) {
	for i := range run.Jobs {
		if !run.Jobs[i].Status.IsFinished() {
			run.Jobs[i].Status = model.JobStatusCanceled
		}
	}
}

// jobEnv builds the environment for a job's steps: process env, event
// metadata, matrix values, workflow/job env, then secrets
func (r *Runner) jobEnv(input Input, job *model.JobRun, def *model.Job) []string {
	run := input.Run

	env := os.Environ()
	env = append(env,
		"DROVER_RUN_ID="+run.ID.String(),
		"DROVER_WORKFLOW="+run.Workflow,
		"DROVER_REPOSITORY="+run.Repository,
		"DROVER_COMMIT_SHA="+run.CommitSHA,
		"DROVER_REF="+run.Ref,
		"DROVER_JOB="+job.ID,
	)
	if run.PullRequest > 0 {
		env = append(env, fmt.Sprintf("DROVER_PULL_REQUEST=%d", run.PullRequest))
	}
	if job.CacheKey != "" {
		env = append(env, "DROVER_CACHE_KEY="+job.CacheKey)
	}

	axes := make([]string, 0, len(job.Matrix))
	for axis := range job.Matrix {
		axes = append(axes, axis)
	}
	sort.Strings(axes)
	for _, axis := range axes {
		env = append(env, "MATRIX_"+envKey(axis)+"="+job.Matrix[axis])
	}

	for _, kv := range []map[string]string{input.Workflow.Env, def.Env, input.Secrets} {
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, k+"="+kv[k])
		}
	}

	return env
}

func stepName(step *model.Step, index int) string {
	if step.Name != "" {
		return step.Name
	}
	if step.ID != "" {
		return step.ID
	}
	return fmt.Sprintf("step-%d", index+1)
}

func envKey(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			out[i] = c - 'a' + 'A'
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out[i] = c
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

// mergeCancel returns a context canceled when either parent is done
func mergeCancel(a, b context.Context) context.Context {
	ctx, cancel := context.WithCancel(a)
	go func() {
		select {
		case <-b.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
