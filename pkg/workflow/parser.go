package workflow

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

var validTriggerEvents = map[string]bool{
	string(model.EventTypePullRequest): true,
	string(model.EventTypeRelease):     true,
}

// Parse decodes a single workflow definition from YAML and validates it
func Parse(data []byte) (*model.Workflow, error) {
	var w model.Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, goerr.Wrap(err, "failed to decode workflow YAML")
	}

	if err := Validate(&w); err != nil {
		return nil, err
	}

	return &w, nil
}

// Validate checks structural rules of a workflow definition:
// trigger event is known, job IDs are unique and non-empty, every job
// has steps of recognized kinds, conditions parse, matrix axes are
// non-empty, and the needs graph is acyclic.
func Validate(w *model.Workflow) error {
	if w.Name == "" {
		return goerr.New("workflow has no name")
	}

	if !validTriggerEvents[w.On.Event] {
		return goerr.Wrap(ErrUnknownTrigger, "unknown trigger event",
			goerr.V("workflow", w.Name), goerr.V("event", w.On.Event))
	}

	if len(w.Jobs) == 0 {
		return goerr.Wrap(ErrNoJobs, "workflow has no jobs", goerr.V("workflow", w.Name))
	}

	seen := make(map[string]bool, len(w.Jobs))
	for i := range w.Jobs {
		job := &w.Jobs[i]

		if job.ID == "" {
			return goerr.Wrap(ErrEmptyJobID, "job has empty ID", goerr.V("workflow", w.Name))
		}
		if seen[job.ID] {
			return goerr.Wrap(ErrDuplicateJobID, "duplicate job ID",
				goerr.V("workflow", w.Name), goerr.V("job", job.ID))
		}
		seen[job.ID] = true

		if err := validateJob(job); err != nil {
			return goerr.Wrap(err, "invalid job", goerr.V("workflow", w.Name), goerr.V("job", job.ID))
		}
	}

	if _, err := sortJobs(w.Jobs); err != nil {
		return goerr.Wrap(err, "invalid job graph", goerr.V("workflow", w.Name))
	}

	return nil
}

func validateJob(job *model.Job) error {
	if err := Condition(job.If).Validate(); err != nil {
		return goerr.Wrap(err, "invalid job condition", goerr.V("if", job.If))
	}

	if job.Strategy != nil {
		if _, err := ExpandMatrix(job.Strategy); err != nil {
			return err
		}
	}

	if len(job.Steps) == 0 {
		return ErrNoSteps
	}

	for i := range job.Steps {
		step := &job.Steps[i]
		if step.Kind() == "" {
			return goerr.Wrap(ErrUnknownStepKind, "step has no recognized kind",
				goerr.V("step_index", i), goerr.V("step", step.Name))
		}
		if err := Condition(step.If).Validate(); err != nil {
			return goerr.Wrap(err, "invalid step condition",
				goerr.V("step_index", i), goerr.V("if", step.If))
		}
	}

	return nil
}

// LoadDir loads every *.yml / *.yaml workflow file in the directory.
// Workflow names must be unique across files.
func LoadDir(dir string) ([]*model.Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read workflow directory", goerr.V("dir", dir))
	}

	var workflows []*model.Workflow
	names := make(map[string]string)

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	for _, name := range files {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read workflow file", goerr.V("path", path))
		}

		w, err := Parse(data)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid workflow file", goerr.V("path", path))
		}

		if prev, ok := names[w.Name]; ok {
			return nil, goerr.New("duplicate workflow name",
				goerr.V("name", w.Name), goerr.V("files", []string{prev, name}))
		}
		names[w.Name] = name

		workflows = append(workflows, w)
	}

	if len(workflows) == 0 {
		return nil, goerr.New("no workflow files found", goerr.V("dir", dir))
	}

	return workflows, nil
}
