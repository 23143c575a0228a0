package workflow

import (
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// Plan is the expanded execution plan of one workflow for one event:
// label gates applied, matrix cells expanded, dependencies resolved to
// concrete job instances.
type Plan struct {
	Workflow *model.Workflow

	// Skipped is set when the workflow's skip label is present; the
	// plan then contains no jobs.
	Skipped bool

	Jobs []model.JobRun

	ConcurrencyKey   string
	CancelInProgress bool
}

// BuildPlan evaluates the workflow against the event. It returns nil
// when the trigger does not match. Gating rules:
//   - the skip label suppresses every job (lint included)
//   - a job whose condition fails against the label set is not planned
//   - a job needing an unplanned job is not planned either
func BuildPlan(w *model.Workflow, event *model.WebhookEvent) (*Plan, error) {
	if !w.On.Matches(event) {
		return nil, nil
	}

	var labels model.LabelSet
	if event.PullRequest != nil {
		labels = event.PullRequest.Labels
	}

	plan := &Plan{Workflow: w}

	if w.Concurrency != nil {
		plan.ConcurrencyKey = renderGroup(w.Concurrency.Group, event)
		plan.CancelInProgress = w.Concurrency.CancelInProgress
	}

	if w.SkipLabel != "" && labels.Has(w.SkipLabel) {
		plan.Skipped = true
		return plan, nil
	}

	order, err := sortJobs(w.Jobs)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid job graph", goerr.V("workflow", w.Name))
	}

	// instanceIDs maps a planned job definition ID to its instance IDs,
	// so dependents can wait on every matrix cell of the dependency
	instanceIDs := make(map[string][]string)

	for i := range order {
		job := &order[i]

		if !Condition(job.If).Eval(labels) {
			continue
		}

		planned := true
		var needs []string
		for _, dep := range job.Needs {
			ids, ok := instanceIDs[dep]
			if !ok {
				planned = false
				break
			}
			needs = append(needs, ids...)
		}
		if !planned {
			continue
		}

		cells, err := ExpandMatrix(job.Strategy)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to expand matrix",
				goerr.V("workflow", w.Name), goerr.V("job", job.ID))
		}

		for _, cell := range cells {
			instance := model.JobRun{
				ID:              job.ID,
				JobID:           job.ID,
				Needs:           needs,
				ContinueOnError: job.ContinueOnError,
				Status:          model.JobStatusPending,
			}
			if len(cell.Values) > 0 {
				instance.ID = job.ID + " " + cell.Suffix()
				instance.Matrix = cell.Values
				instance.CacheKey = cell.CacheKey
			}
			plan.Jobs = append(plan.Jobs, instance)
			instanceIDs[job.ID] = append(instanceIDs[job.ID], instance.ID)
		}
	}

	return plan, nil
}

// ToRun materializes the plan as a queued run record
func (p *Plan) ToRun(event *model.WebhookEvent) *model.Run {
	run := model.NewRun(p.Workflow.Name, event)
	run.ConcurrencyKey = p.ConcurrencyKey
	run.Jobs = p.Jobs
	return run
}

// renderGroup substitutes event placeholders in a concurrency group
// template: {{ .Number }}, {{ .Ref }}, {{ .Repository }}
func renderGroup(tmpl string, event *model.WebhookEvent) string {
	number := ""
	ref := ""
	if event.PullRequest != nil {
		number = strconv.Itoa(event.PullRequest.Number)
		ref = event.PullRequest.HeadRef
	}
	if event.Release != nil {
		ref = event.Release.TagName
	}

	r := strings.NewReplacer(
		"{{ .Number }}", number,
		"{{.Number}}", number,
		"{{ .Ref }}", ref,
		"{{.Ref}}", ref,
		"{{ .Repository }}", event.Repository,
		"{{.Repository}}", event.Repository,
	)
	return r.Replace(tmpl)
}
