package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a workflow run
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// IsFinished reports whether the status is terminal
func (s RunStatus) IsFinished() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a single job instance
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusSkipped   JobStatus = "skipped"
	JobStatusCanceled  JobStatus = "canceled"
)

// IsFinished reports whether the status is terminal
func (s JobStatus) IsFinished() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusSkipped, JobStatusCanceled:
		return true
	}
	return false
}

// Run is a single execution of a workflow, created from a webhook event
type Run struct {
	ID             uuid.UUID `json:"id" firestore:"id"`
	Workflow       string    `json:"workflow" firestore:"workflow"`
	Repository     string    `json:"repository" firestore:"repository"`
	EventType      string    `json:"event_type" firestore:"event_type"`
	EventAction    string    `json:"event_action" firestore:"event_action"`
	CommitSHA      string    `json:"commit_sha" firestore:"commit_sha"`
	Ref            string    `json:"ref,omitempty" firestore:"ref,omitempty"`
	PullRequest    int       `json:"pull_request,omitempty" firestore:"pull_request,omitempty"`
	Labels         []string  `json:"labels,omitempty" firestore:"labels,omitempty"`
	ConcurrencyKey string    `json:"concurrency_key,omitempty" firestore:"concurrency_key,omitempty"`

	Status     RunStatus `json:"status" firestore:"status"`
	Conclusion string    `json:"conclusion,omitempty" firestore:"conclusion,omitempty"`
	Jobs       []JobRun  `json:"jobs" firestore:"jobs"`

	CreatedAt  time.Time  `json:"created_at" firestore:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty" firestore:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty" firestore:"finished_at,omitempty"`

	// CanceledBy holds the run ID that superseded this run, when the run
	// was canceled by concurrency deduplication
	CanceledBy string `json:"canceled_by,omitempty" firestore:"canceled_by,omitempty"`
}

// NewRun creates a queued run for the given workflow and event
func NewRun(workflow string, event *WebhookEvent) *Run {
	run := &Run{
		ID:          uuid.New(),
		Workflow:    workflow,
		Repository:  event.Repository,
		EventType:   string(event.Type),
		EventAction: event.Action,
		CommitSHA:   event.HeadSHA(),
		Status:      RunStatusQueued,
		CreatedAt:   time.Now().UTC(),
	}
	if pr := event.PullRequest; pr != nil {
		run.PullRequest = pr.Number
		run.Ref = pr.HeadRef
		run.Labels = pr.Labels.Names()
	}
	if rel := event.Release; rel != nil {
		run.Ref = rel.TagName
	}
	return run
}

// MarkRunning transitions the run to running
func (r *Run) MarkRunning() {
	now := time.Now().UTC()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkCanceled transitions the run to canceled, recording the superseding run
func (r *Run) MarkCanceled(byRunID string) {
	now := time.Now().UTC()
	r.Status = RunStatusCanceled
	r.CanceledBy = byRunID
	r.FinishedAt = &now
	for i := range r.Jobs {
		if !r.Jobs[i].Status.IsFinished() {
			r.Jobs[i].Status = JobStatusCanceled
		}
	}
}

// Finish computes the terminal status from job results. A failed job
// whose definition declares continue-on-error does not fail the run;
// skipped jobs never affect the conclusion.
func (r *Run) Finish() {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Status = RunStatusSucceeded
	for i := range r.Jobs {
		j := &r.Jobs[i]
		if j.Status == JobStatusFailed && !j.ContinueOnError {
			r.Status = RunStatusFailed
			break
		}
	}
	r.Conclusion = string(r.Status)
}

// Job finds a job run by instance ID
func (r *Run) Job(id string) *JobRun {
	for i := range r.Jobs {
		if r.Jobs[i].ID == id {
			return &r.Jobs[i]
		}
	}
	return nil
}

// FailedJobs returns job runs that finished with a failure
func (r *Run) FailedJobs() []JobRun {
	var failed []JobRun
	for _, j := range r.Jobs {
		if j.Status == JobStatusFailed {
			failed = append(failed, j)
		}
	}
	return failed
}

// JobRun is one planned job instance. Matrix jobs yield one JobRun per
// cell; the instance ID encodes the cell, e.g. "test (ubuntu, 3.11)".
type JobRun struct {
	// ID is the instance identifier, unique within the run
	ID string `json:"id" firestore:"id"`

	// JobID is the job definition ID in the workflow
	JobID string `json:"job_id" firestore:"job_id"`

	// Matrix holds the axis values for this cell, empty for plain jobs
	Matrix map[string]string `json:"matrix,omitempty" firestore:"matrix,omitempty"`

	// CacheKey is the rendered cache key prefix for this cell
	CacheKey string `json:"cache_key,omitempty" firestore:"cache_key,omitempty"`

	// Needs lists instance IDs this job waits for
	Needs []string `json:"needs,omitempty" firestore:"needs,omitempty"`

	// ContinueOnError is carried from the job definition so that run
	// conclusion can be computed from stored data alone
	ContinueOnError bool `json:"continue_on_error,omitempty" firestore:"continue_on_error,omitempty"`

	Status JobStatus    `json:"status" firestore:"status"`
	Steps  []StepResult `json:"steps,omitempty" firestore:"steps,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty" firestore:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty" firestore:"finished_at,omitempty"`
}

// StepResult records the outcome of a single step within a job run
type StepResult struct {
	Name            string        `json:"name" firestore:"name"`
	Kind            string        `json:"kind" firestore:"kind"`
	Status          JobStatus     `json:"status" firestore:"status"`
	Output          string        `json:"output,omitempty" firestore:"output,omitempty"`
	Error           string        `json:"error,omitempty" firestore:"error,omitempty"`
	ContinueOnError bool          `json:"continue_on_error,omitempty" firestore:"continue_on_error,omitempty"`
	Duration        time.Duration `json:"duration,omitempty" firestore:"duration,omitempty"`
}
