package workflow_test

import (
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/workflow"
)

func prEvent(labels ...string) *model.WebhookEvent {
	return &model.WebhookEvent{
		ID:         "delivery-1",
		Type:       model.EventTypePullRequest,
		Action:     "opened",
		Repository: "acme/seismo",
		Sender:     "octocat",
		ReceivedAt: time.Now(),
		PullRequest: &model.PullRequestInfo{
			Number:  123,
			HeadSHA: "abc1234",
			HeadRef: "feature/decimate",
			BaseRef: "master",
			Labels:  model.NewLabelSet(labels...),
		},
	}
}

func mustParse(t *testing.T, yaml string) *model.Workflow {
	t.Helper()
	return gt.R1(workflow.Parse([]byte(yaml))).NoError(t)
}

func TestBuildPlanDefault(t *testing.T) {
	w := mustParse(t, pullRequestYAML)

	plan := gt.R1(workflow.BuildPlan(w, prEvent())).NoError(t)
	gt.V(t, plan).NotNil()
	gt.V(t, plan.Skipped).Equal(false)
	gt.V(t, plan.ConcurrencyKey).Equal("pr-123")
	gt.V(t, plan.CancelInProgress).Equal(true)

	// lint + 9 matrix cells, no network job without its label
	gt.V(t, len(plan.Jobs)).Equal(10)
	jobIDs := make(map[string]int)
	for _, j := range plan.Jobs {
		jobIDs[j.JobID]++
	}
	gt.V(t, jobIDs["lint"]).Equal(1)
	gt.V(t, jobIDs["test"]).Equal(9)
	gt.V(t, jobIDs["test-network"]).Equal(0)
}

func TestBuildPlanNoCI(t *testing.T) {
	w := mustParse(t, pullRequestYAML)

	// no_ci suppresses every job, lint included
	plan := gt.R1(workflow.BuildPlan(w, prEvent("no_ci"))).NoError(t)
	gt.V(t, plan).NotNil()
	gt.V(t, plan.Skipped).Equal(true)
	gt.V(t, len(plan.Jobs)).Equal(0)

	// no_ci wins even when other gate labels are present
	plan = gt.R1(workflow.BuildPlan(w, prEvent("no_ci", "test_network"))).NoError(t)
	gt.V(t, plan.Skipped).Equal(true)
	gt.V(t, len(plan.Jobs)).Equal(0)
}

func TestBuildPlanNetworkLabel(t *testing.T) {
	w := mustParse(t, pullRequestYAML)

	plan := gt.R1(workflow.BuildPlan(w, prEvent("test_network"))).NoError(t)

	// network job runs in addition to the default jobs
	gt.V(t, len(plan.Jobs)).Equal(11)

	var network *model.JobRun
	for i := range plan.Jobs {
		if plan.Jobs[i].JobID == "test-network" {
			network = &plan.Jobs[i]
		}
	}
	gt.V(t, network).NotNil()
	gt.V(t, network.ContinueOnError).Equal(true)
}

func TestBuildPlanMatrixInstances(t *testing.T) {
	w := mustParse(t, pullRequestYAML)

	plan := gt.R1(workflow.BuildPlan(w, prEvent())).NoError(t)

	seen := make(map[string]bool)
	for _, j := range plan.Jobs {
		if j.JobID != "test" {
			continue
		}
		gt.V(t, seen[j.ID]).Equal(false)
		seen[j.ID] = true

		os := j.Matrix["os"]
		version := j.Matrix["version"]
		gt.V(t, j.ID).Equal("test (" + os + ", " + version + ")")
		gt.V(t, j.CacheKey).Equal("env-" + os + "-py" + version)
	}
	gt.V(t, len(seen)).Equal(9)
}

func TestBuildPlanTriggerMismatch(t *testing.T) {
	w := mustParse(t, pullRequestYAML)

	event := &model.WebhookEvent{
		Type:       model.EventTypeRelease,
		Action:     "published",
		Repository: "acme/seismo",
		Release:    &model.ReleaseInfo{TagName: "v1.4.0", CommitSHA: "def5678"},
	}

	plan := gt.R1(workflow.BuildPlan(w, event)).NoError(t)
	if plan != nil {
		t.Fatalf("BuildPlan() = %+v, want nil for non-matching trigger", plan)
	}
}

func TestBuildPlanNeedsExpansion(t *testing.T) {
	w := mustParse(t, releaseYAML)

	event := &model.WebhookEvent{
		Type:       model.EventTypeRelease,
		Action:     "published",
		Repository: "acme/seismo",
		Release:    &model.ReleaseInfo{TagName: "v1.4.0", CommitSHA: "def5678"},
	}

	plan := gt.R1(workflow.BuildPlan(w, event)).NoError(t)
	gt.V(t, len(plan.Jobs)).Equal(2)

	publish := plan.Jobs[1]
	gt.V(t, publish.JobID).Equal("publish")
	gt.V(t, publish.Needs).Equal([]string{"build"})
}

func TestBuildPlanGatedDependency(t *testing.T) {
	const yaml = `
name: w
on:
  event: pull_request
jobs:
  - id: gated
    if: label:test_network
    steps: [{run: "true"}]
  - id: dependent
    needs: [gated]
    steps: [{run: "true"}]
`
	w := mustParse(t, yaml)

	// dependent is not planned when its dependency is gated out
	plan := gt.R1(workflow.BuildPlan(w, prEvent())).NoError(t)
	gt.V(t, len(plan.Jobs)).Equal(0)

	plan = gt.R1(workflow.BuildPlan(w, prEvent("test_network"))).NoError(t)
	gt.V(t, len(plan.Jobs)).Equal(2)
}

func TestPlanToRun(t *testing.T) {
	w := mustParse(t, pullRequestYAML)
	event := prEvent("upload_images")

	plan := gt.R1(workflow.BuildPlan(w, event)).NoError(t)
	run := plan.ToRun(event)

	gt.V(t, run.Workflow).Equal("pull-request")
	gt.V(t, run.Repository).Equal("acme/seismo")
	gt.V(t, run.PullRequest).Equal(123)
	gt.V(t, run.CommitSHA).Equal("abc1234")
	gt.V(t, run.ConcurrencyKey).Equal("pr-123")
	gt.V(t, run.Status).Equal(model.RunStatusQueued)
	gt.V(t, len(run.Jobs)).Equal(len(plan.Jobs))

	found := false
	for _, l := range run.Labels {
		if strings.Contains(l, "upload_images") {
			found = true
		}
	}
	gt.V(t, found).Equal(true)
}

func TestReadyAndBlockedJobs(t *testing.T) {
	run := &model.Run{
		Jobs: []model.JobRun{
			{ID: "build", Status: model.JobStatusFailed},
			{ID: "publish", Needs: []string{"build"}, Status: model.JobStatusPending},
			{ID: "lint", Status: model.JobStatusPending},
		},
	}

	ready := workflow.ReadyJobs(run)
	gt.V(t, len(ready)).Equal(1)
	gt.V(t, ready[0].ID).Equal("lint")

	blocked := workflow.BlockedJobs(run)
	gt.V(t, len(blocked)).Equal(1)
	gt.V(t, blocked[0].ID).Equal("publish")
}
