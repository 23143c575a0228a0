package model

// Workflow is a declarative workflow definition loaded from a YAML file.
// It describes when to run (trigger), how concurrent runs of the same
// group are handled, and the set of jobs to execute.
type Workflow struct {
	Name        string            `yaml:"name"`
	On          Trigger           `yaml:"on"`
	Concurrency *Concurrency      `yaml:"concurrency,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	Jobs        []Job             `yaml:"jobs"`

	// SkipLabel suppresses the whole workflow when the label is present
	// on the pull request, e.g. "no_ci". The planned run has no jobs.
	SkipLabel string `yaml:"skip-label,omitempty"`
}

// Job looks up a job definition by ID
func (w *Workflow) Job(id string) *Job {
	for i := range w.Jobs {
		if w.Jobs[i].ID == id {
			return &w.Jobs[i]
		}
	}
	return nil
}

// Trigger describes the event surface that starts the workflow
type Trigger struct {
	// Event is the webhook event type: "pull_request" or "release"
	Event string `yaml:"event"`

	// Actions restricts the event actions that trigger the workflow.
	// Empty means any supported action of the event type.
	Actions []string `yaml:"actions,omitempty"`
}

// Matches reports whether the trigger fires for the given event
func (t Trigger) Matches(event *WebhookEvent) bool {
	if string(event.Type) != t.Event {
		return false
	}
	if len(t.Actions) == 0 {
		return event.IsSupportedEvent()
	}
	for _, a := range t.Actions {
		if a == event.Action {
			return true
		}
	}
	return false
}

// Concurrency groups runs for deduplication. A new run whose rendered
// group key matches an in-flight run cancels the older run when
// CancelInProgress is set.
type Concurrency struct {
	// Group is a template over the event, e.g. "pr-{{ .Number }}".
	// Supported placeholders: {{ .Number }}, {{ .Ref }}, {{ .Repository }}.
	Group string `yaml:"group"`

	CancelInProgress bool `yaml:"cancel-in-progress"`
}

// Job is a single unit of work within a workflow. A job with a matrix
// strategy is expanded into one instance per axis combination.
type Job struct {
	// ID is the job identifier, unique within the workflow
	ID string `yaml:"id"`

	Name string `yaml:"name,omitempty"`

	// Needs lists job IDs that must succeed before this job starts
	Needs []string `yaml:"needs,omitempty"`

	// If is a condition evaluated once per run against the label set.
	// Supported forms: "always", "success", "label:<name>", "!label:<name>".
	If string `yaml:"if,omitempty"`

	// ContinueOnError records the job's failure without failing the run
	ContinueOnError bool `yaml:"continue-on-error,omitempty"`

	TimeoutMinutes int `yaml:"timeout-minutes,omitempty"`

	Strategy *Strategy `yaml:"strategy,omitempty"`

	Env map[string]string `yaml:"env,omitempty"`

	Steps []Step `yaml:"steps"`
}

// Strategy controls matrix expansion and sibling failure behavior
type Strategy struct {
	// FailFast cancels sibling matrix cells when one cell fails.
	// The default is false: each cell reports independently.
	FailFast bool `yaml:"fail-fast,omitempty"`

	// Matrix maps axis names to their values, e.g.
	// os: [ubuntu, macos, windows] / version: ["3.10", "3.11"].
	// Cells are produced by cross product of all axes.
	Matrix map[string][]string `yaml:"matrix,omitempty"`

	// CacheKeyPrefix is a template rendered per cell, e.g.
	// "env-{{ .os }}-{{ .version }}". Placeholders are axis names.
	CacheKeyPrefix string `yaml:"cache-key-prefix,omitempty"`
}

// StepKind identifies the built-in behavior of a step
type StepKind string

const (
	StepKindRun      StepKind = "run"      // execute a command
	StepKindCheckout StepKind = "checkout" // download and extract the source zipball
	StepKindArtifact StepKind = "artifact" // upload files to object storage
	StepKindCoverage StepKind = "coverage" // upload a coverage report
	StepKindPublish  StepKind = "publish"  // publish a distribution to the package index
)

// Step is a single action within a job. Exactly one of the kind fields
// (Run, Checkout, Artifact, Coverage, Publish) must be set.
type Step struct {
	ID   string `yaml:"id,omitempty"`
	Name string `yaml:"name,omitempty"`

	// If gates step execution: "always" runs regardless of prior step
	// outcome, label conditions gate on the PR label set. Empty means
	// "success" (run only while the job has no failed step).
	If string `yaml:"if,omitempty"`

	// ContinueOnError records the step's failure without failing the job
	ContinueOnError bool `yaml:"continue-on-error,omitempty"`

	Env map[string]string `yaml:"env,omitempty"`

	Run      string        `yaml:"run,omitempty"`
	Checkout *CheckoutStep `yaml:"checkout,omitempty"`
	Artifact *ArtifactStep `yaml:"artifact,omitempty"`
	Coverage *CoverageStep `yaml:"coverage,omitempty"`
	Publish  *PublishStep  `yaml:"publish,omitempty"`
}

// Kind returns the step kind derived from which field is set
func (s *Step) Kind() StepKind {
	switch {
	case s.Run != "":
		return StepKindRun
	case s.Checkout != nil:
		return StepKindCheckout
	case s.Artifact != nil:
		return StepKindArtifact
	case s.Coverage != nil:
		return StepKindCoverage
	case s.Publish != nil:
		return StepKindPublish
	}
	return ""
}

// CheckoutStep downloads the event's head commit into the job workspace
type CheckoutStep struct {
	// Ref overrides the commit to check out. Empty means the event head.
	Ref string `yaml:"ref,omitempty"`
}

// ArtifactStep uploads files matching Path to object storage under Name
type ArtifactStep struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// CoverageStep uploads a coverage report file to the report endpoint
type CoverageStep struct {
	File string `yaml:"file"`
	Flag string `yaml:"flag,omitempty"`
}

// PublishStep uploads distribution files to the package index endpoint
type PublishStep struct {
	// Path is a glob matching the distribution files (sdist/wheel)
	Path string `yaml:"path"`
}
