package workflow

import (
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// sortJobs returns the workflow's jobs in topological order (Kahn's
// algorithm) and reports dependency errors: unknown or self references
// and cycles. Jobs with equal depth keep their declaration order.
func sortJobs(jobs []model.Job) ([]model.Job, error) {
	byID := make(map[string]int, len(jobs))
	for i, job := range jobs {
		byID[job.ID] = i
	}

	inDegree := make([]int, len(jobs))
	dependents := make([][]int, len(jobs))
	for i, job := range jobs {
		for _, dep := range job.Needs {
			if dep == job.ID {
				return nil, goerr.Wrap(ErrSelfDependency, "job depends on itself", goerr.V("job", job.ID))
			}
			j, ok := byID[dep]
			if !ok {
				return nil, goerr.Wrap(ErrMissingDependency, "job needs unknown job",
					goerr.V("job", job.ID), goerr.V("needs", dep))
			}
			dependents[j] = append(dependents[j], i)
			inDegree[i]++
		}
	}

	var queue []int
	for i := range jobs {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]model.Job, 0, len(jobs))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, jobs[i])

		for _, dep := range dependents[i] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(jobs) {
		return nil, goerr.Wrap(ErrCyclicDependency, "workflow jobs form a cycle")
	}

	return order, nil
}

// ReadyJobs returns job instances whose dependencies are all finished
// and that have not started yet. A dependency that finished without
// success blocks its dependents; the caller marks those skipped.
func ReadyJobs(run *model.Run) []*model.JobRun {
	var ready []*model.JobRun
	for i := range run.Jobs {
		j := &run.Jobs[i]
		if j.Status != model.JobStatusPending {
			continue
		}
		if depsSatisfied(run, j) {
			ready = append(ready, j)
		}
	}
	return ready
}

// BlockedJobs returns pending job instances that can never start because
// a dependency finished without success
func BlockedJobs(run *model.Run) []*model.JobRun {
	var blocked []*model.JobRun
	for i := range run.Jobs {
		j := &run.Jobs[i]
		if j.Status != model.JobStatusPending {
			continue
		}
		for _, need := range j.Needs {
			dep := run.Job(need)
			if dep == nil {
				// dangling reference cannot be satisfied
				blocked = append(blocked, j)
				break
			}
			if dep.Status.IsFinished() && dep.Status != model.JobStatusSucceeded {
				blocked = append(blocked, j)
				break
			}
		}
	}
	return blocked
}

func depsSatisfied(run *model.Run, j *model.JobRun) bool {
	for _, need := range j.Needs {
		dep := run.Job(need)
		if dep == nil || dep.Status != model.JobStatusSucceeded {
			return false
		}
	}
	return true
}
