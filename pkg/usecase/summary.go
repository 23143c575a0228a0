package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
)

//go:embed prompts/failure_summary_system.md
var summarySystemPrompt string

//go:embed prompts/failure_summary_user.md
var summaryUserTemplate string

// maxStepOutput bounds how much step output goes into the prompt per step
const maxStepOutput = 4096

type summarizer struct {
	llmClient    gollem.LLMClient
	githubClient interfaces.GitHubClient
	userTemplate *template.Template
}

// NewSummarizer creates a SummaryUseCase that explains failed runs on
// their pull request using an LLM
func NewSummarizer(
	llmClient gollem.LLMClient,
	githubClient interfaces.GitHubClient,
) (interfaces.SummaryUseCase, error) {
	tmpl, err := template.New("user").Parse(summaryUserTemplate)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse user prompt template")
	}

	return &summarizer{
		llmClient:    llmClient,
		githubClient: githubClient,
		userTemplate: tmpl,
	}, nil
}

// SummarizeFailure analyzes the failed jobs of a run and posts the
// summary as a pull request comment
func (uc *summarizer) SummarizeFailure(ctx context.Context, run *model.Run) error {
	logger := ctxlog.From(ctx)

	if run.PullRequest <= 0 {
		return goerr.New("run has no pull request", goerr.V("run_id", run.ID))
	}

	failed := run.FailedJobs()
	if len(failed) == 0 {
		return goerr.New("run has no failed jobs", goerr.V("run_id", run.ID))
	}

	logger.Info("Summarizing failed run",
		"run_id", run.ID,
		"workflow", run.Workflow,
		"failed_jobs", len(failed),
	)

	summary, err := uc.summarize(ctx, run, failed)
	if err != nil {
		return goerr.Wrap(err, "failed to summarize run", goerr.V("run_id", run.ID))
	}

	comment := formatSummaryComment(run, summary)
	owner, repo := splitFullName(run.Repository)
	if _, _, err := uc.githubClient.CreateComment(ctx, owner, repo, run.PullRequest, &github.IssueComment{
		Body: github.String(comment),
	}); err != nil {
		return goerr.Wrap(err, "failed to create comment",
			goerr.V("repository", run.Repository), goerr.V("number", run.PullRequest))
	}

	logger.Info("Posted failure summary", "run_id", run.ID, "number", run.PullRequest)

	return nil
}

// failedJobView is the template input for one failed job
type failedJobView struct {
	ID    string
	Steps []failedStepView
}

type failedStepView struct {
	Name   string
	Error  string
	Output string
}

// summarize asks the LLM for a structured failure summary
func (uc *summarizer) summarize(ctx context.Context, run *model.Run, failed []model.JobRun) (*model.FailureSummary, error) {
	logger := ctxlog.From(ctx)

	jobs := make([]failedJobView, 0, len(failed))
	for _, j := range failed {
		view := failedJobView{ID: j.ID}
		for _, s := range j.Steps {
			if s.Status != model.JobStatusFailed {
				continue
			}
			output := s.Output
			if len(output) > maxStepOutput {
				output = output[len(output)-maxStepOutput:]
			}
			view.Steps = append(view.Steps, failedStepView{
				Name:   s.Name,
				Error:  s.Error,
				Output: output,
			})
		}
		jobs = append(jobs, view)
	}

	var buf bytes.Buffer
	if err := uc.userTemplate.Execute(&buf, map[string]any{
		"Workflow":   run.Workflow,
		"Repository": run.Repository,
		"CommitSHA":  run.CommitSHA,
		"Jobs":       jobs,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute user prompt template")
	}
	userPrompt := buf.String()

	logger.Debug("Calling LLM for failure summary", "prompt_length", len(userPrompt))

	session, err := uc.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionSystemPrompt(summarySystemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate LLM content")
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("no response from LLM")
	}

	var summary model.FailureSummary
	if err := json.Unmarshal([]byte(resp.Texts[0]), &summary); err != nil {
		return nil, goerr.Wrap(err, "failed to parse LLM response", goerr.V("response", resp.Texts[0]))
	}

	return &summary, nil
}

// formatSummaryComment formats the summary as a markdown comment
func formatSummaryComment(run *model.Run, summary *model.FailureSummary) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## ❌ %s failed\n\n", run.Workflow))
	sb.WriteString(summary.Headline)
	sb.WriteString("\n")

	for _, cause := range summary.Causes {
		sb.WriteString(fmt.Sprintf("\n### %s", cause.Job))
		if cause.Step != "" {
			sb.WriteString(fmt.Sprintf(" / %s", cause.Step))
		}
		sb.WriteString("\n\n")
		sb.WriteString(cause.Reason)
		sb.WriteString("\n")
		if cause.Suggestion != "" {
			sb.WriteString(fmt.Sprintf("\n**Suggestion**: %s\n", cause.Suggestion))
		}
	}

	sb.WriteString(fmt.Sprintf("\n---\nrun `%s`\n", run.ID))

	return sb.String()
}
