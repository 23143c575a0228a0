package usecase_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/mock"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/usecase"
)

func failedRun() *model.Run {
	run := model.NewRun("pr", prEvent(7))
	run.Jobs = []model.JobRun{
		{
			ID:     "test (ubuntu, 3.11)",
			JobID:  "test",
			Status: model.JobStatusFailed,
			Steps: []model.StepResult{
				{Name: "run pytest", Kind: "run", Status: model.JobStatusFailed,
					Output: "FAILED tests/test_api.py::test_login - assert 401 == 200",
					Error:  "exit status 1"},
			},
		},
	}
	run.Finish()
	return run
}

func TestSummarizeFailure(t *testing.T) {
	ctx := context.Background()

	summary := model.FailureSummary{
		Headline: "test job failed on an assertion in tests/test_api.py",
		Causes: []model.FailureCause{
			{
				Job:        "test (ubuntu, 3.11)",
				Step:       "run pytest",
				Reason:     "test_login got 401 instead of 200",
				Suggestion: "check the auth fixture",
			},
		},
	}
	responseJSON := gt.R1(json.Marshal(summary)).NoError(t)

	var capturedPrompt string
	mockClient := &mock.LLMClientMock{
		NewSessionFunc: func(ctx context.Context, opts ...gollem.SessionOption) (gollem.Session, error) {
			return &mock.SessionMock{
				GenerateFunc: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
					for _, in := range input {
						if text, ok := in.(gollem.Text); ok {
							capturedPrompt = string(text)
						}
					}
					return &gollem.Response{
						Texts: []string{string(responseJSON)},
					}, nil
				},
			}, nil
		},
	}

	gh := &mockGitHub{}
	uc := gt.R1(usecase.NewSummarizer(mockClient, gh)).NoError(t)

	run := failedRun()
	gt.NoError(t, uc.SummarizeFailure(ctx, run))

	// the prompt carries the failing step output
	gt.V(t, strings.Contains(capturedPrompt, "test_api.py::test_login")).Equal(true)
	gt.V(t, strings.Contains(capturedPrompt, "test (ubuntu, 3.11)")).Equal(true)

	// the comment carries the structured summary
	gt.V(t, len(gh.comments)).Equal(1)
	comment := gh.comments[0]
	gt.V(t, strings.Contains(comment, "pr failed")).Equal(true)
	gt.V(t, strings.Contains(comment, "check the auth fixture")).Equal(true)
	gt.V(t, strings.Contains(comment, "run pytest")).Equal(true)
}

func TestSummarizeFailureRequiresFailedJobs(t *testing.T) {
	ctx := context.Background()

	mockClient := &mock.LLMClientMock{
		NewSessionFunc: func(ctx context.Context, opts ...gollem.SessionOption) (gollem.Session, error) {
			t.Fatal("LLM must not be called")
			return nil, nil
		},
	}

	uc := gt.R1(usecase.NewSummarizer(mockClient, &mockGitHub{})).NoError(t)

	run := model.NewRun("pr", prEvent(7))
	run.Finish()
	gt.True(t, uc.SummarizeFailure(ctx, run) != nil)
}

func TestSummarizeFailureTruncatesLongOutput(t *testing.T) {
	ctx := context.Background()

	responseJSON := gt.R1(json.Marshal(model.FailureSummary{Headline: "x"})).NoError(t)

	var capturedPrompt string
	mockClient := &mock.LLMClientMock{
		NewSessionFunc: func(ctx context.Context, opts ...gollem.SessionOption) (gollem.Session, error) {
			return &mock.SessionMock{
				GenerateFunc: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
					for _, in := range input {
						if text, ok := in.(gollem.Text); ok {
							capturedPrompt = string(text)
						}
					}
					return &gollem.Response{Texts: []string{string(responseJSON)}}, nil
				},
			}, nil
		},
	}

	uc := gt.R1(usecase.NewSummarizer(mockClient, &mockGitHub{})).NoError(t)

	run := failedRun()
	head := strings.Repeat("early-output ", 1000)
	run.Jobs[0].Steps[0].Output = head + "final error line"
	gt.NoError(t, uc.SummarizeFailure(ctx, run))

	// only the tail of the output survives
	gt.V(t, strings.Contains(capturedPrompt, "final error line")).Equal(true)
	gt.V(t, strings.HasPrefix(capturedPrompt, head)).Equal(false)
}
