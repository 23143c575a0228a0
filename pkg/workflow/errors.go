package workflow

import "errors"

// Validation errors for workflow definitions.
var (
	ErrNoJobs            = errors.New("workflow has no jobs")
	ErrEmptyJobID        = errors.New("job has empty ID")
	ErrDuplicateJobID    = errors.New("duplicate job ID")
	ErrNoSteps           = errors.New("job has no steps")
	ErrUnknownStepKind   = errors.New("step has no recognized kind")
	ErrMissingDependency = errors.New("job needs unknown job")
	ErrSelfDependency    = errors.New("job depends on itself")
	ErrCyclicDependency  = errors.New("cyclic dependency detected")
	ErrEmptyMatrixAxis   = errors.New("matrix axis has no values")
	ErrUnknownTrigger    = errors.New("unknown trigger event")
	ErrBadCondition      = errors.New("malformed condition")
)
