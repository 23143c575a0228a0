package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// maxStepOutput caps the captured command output stored on a step result
const maxStepOutput = 64 * 1024

// jobExecution carries per-job state across steps
type jobExecution struct {
	runner  *Runner
	input   Input
	job     *model.JobRun
	def     *model.Job
	workdir string

	// srcDir is where run steps execute: the workspace until a
	// checkout step succeeds, then the extracted source root
	srcDir string

	env        []string
	lastOutput string
}

func (e *jobExecution) runStep(ctx context.Context, step *model.Step) error {
	e.lastOutput = ""

	switch step.Kind() {
	case model.StepKindRun:
		return e.runCommand(ctx, step)
	case model.StepKindCheckout:
		return e.checkout(ctx, step.Checkout)
	case model.StepKindArtifact:
		return e.uploadArtifact(ctx, step.Artifact)
	case model.StepKindCoverage:
		return e.uploadCoverage(ctx, step.Coverage)
	case model.StepKindPublish:
		return e.publish(ctx, step.Publish)
	}
	return goerr.New("unknown step kind", goerr.V("step", step.Name))
}

// runCommand executes a shell command in the source directory
func (e *jobExecution) runCommand(ctx context.Context, step *model.Step) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", step.Run)
	cmd.Dir = e.srcDir
	cmd.Env = e.env
	if len(step.Env) > 0 {
		env := append([]string(nil), e.env...)
		for k, v := range step.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	out, err := cmd.CombinedOutput()
	if len(out) > maxStepOutput {
		out = out[len(out)-maxStepOutput:]
	}
	e.lastOutput = string(out)

	if err != nil {
		return goerr.Wrap(err, "command failed", goerr.V("command", step.Run))
	}
	return nil
}

// checkout downloads the event head (or an explicit ref) and extracts
// it into the workspace. Subsequent run steps execute inside the
// extracted source root.
func (e *jobExecution) checkout(ctx context.Context, step *model.CheckoutStep) error {
	logger := ctxlog.From(ctx)
	run := e.input.Run

	ref := run.CommitSHA
	if step.Ref != "" {
		ref = step.Ref
	}

	owner, repo := splitRepository(run.Repository)
	zipData, err := e.runner.github.DownloadZipball(ctx, owner, repo, ref)
	if err != nil {
		return goerr.Wrap(err, "failed to download zipball",
			goerr.V("repository", run.Repository), goerr.V("ref", ref))
	}

	logger.Debug("Downloaded zipball", "size_bytes", len(zipData), "repository", run.Repository)

	result, err := extractZip(zipData, filepath.Join(e.workdir, "src"))
	if err != nil {
		return goerr.Wrap(err, "failed to extract zipball", goerr.V("repository", run.Repository))
	}

	e.srcDir = result.Dir

	logger.Info("Checked out source",
		"repository", run.Repository,
		"ref", ref,
		"dir", result.Dir,
		"file_count", len(result.Files),
		"total_size_bytes", result.Size,
	)
	return nil
}

// uploadArtifact globs files relative to the source directory and
// uploads each to object storage
func (e *jobExecution) uploadArtifact(ctx context.Context, step *model.ArtifactStep) error {
	if e.runner.artifacts == nil {
		return goerr.New("artifact store not configured")
	}

	matches, err := filepath.Glob(filepath.Join(e.srcDir, step.Path))
	if err != nil {
		return goerr.Wrap(err, "bad artifact glob", goerr.V("path", step.Path))
	}

	var files []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, match)
	}
	if len(files) == 0 {
		return goerr.New("no files matched artifact path", goerr.V("path", step.Path))
	}

	prefix := e.input.Run.ID.String() + "/" + e.job.ID + "/" + step.Name
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return goerr.Wrap(err, "failed to open artifact file", goerr.V("file", file))
		}

		location, err := e.runner.artifacts.Upload(ctx, prefix+"/"+filepath.Base(file), f)
		f.Close()
		if err != nil {
			return goerr.Wrap(err, "failed to upload artifact", goerr.V("file", file))
		}

		ctxlog.From(ctx).Info("Uploaded artifact", "file", filepath.Base(file), "location", location)
	}
	return nil
}

// uploadCoverage uploads a single coverage report file
func (e *jobExecution) uploadCoverage(ctx context.Context, step *model.CoverageStep) error {
	if e.runner.reports == nil {
		return goerr.New("report client not configured")
	}

	f, err := os.Open(filepath.Join(e.srcDir, step.File))
	if err != nil {
		return goerr.Wrap(err, "failed to open coverage report", goerr.V("file", step.File))
	}
	defer f.Close()

	run := e.input.Run
	flag := step.Flag
	if flag == "" && len(e.job.Matrix) > 0 {
		// one flag per matrix cell keeps reports distinguishable
		flag = e.job.CacheKey
	}

	if err := e.runner.reports.UploadCoverage(ctx, run.Repository, run.CommitSHA, flag, f); err != nil {
		return goerr.Wrap(err, "failed to upload coverage report")
	}
	return nil
}

// publish uploads every matched distribution file to the package index
func (e *jobExecution) publish(ctx context.Context, step *model.PublishStep) error {
	if e.runner.reports == nil {
		return goerr.New("report client not configured")
	}

	matches, err := filepath.Glob(filepath.Join(e.srcDir, step.Path))
	if err != nil {
		return goerr.Wrap(err, "bad publish glob", goerr.V("path", step.Path))
	}
	if len(matches) == 0 {
		return goerr.New("no distribution files matched", goerr.V("path", step.Path))
	}

	for _, file := range matches {
		f, err := os.Open(file)
		if err != nil {
			return goerr.Wrap(err, "failed to open distribution file", goerr.V("file", file))
		}

		err = e.runner.reports.PublishPackage(ctx, filepath.Base(file), f)
		f.Close()
		if err != nil {
			return goerr.Wrap(err, "failed to publish distribution", goerr.V("file", file))
		}

		ctxlog.From(ctx).Info("Published distribution", "file", filepath.Base(file))
	}
	return nil
}

func splitRepository(fullName string) (owner, repo string) {
	for i := 0; i < len(fullName); i++ {
		if fullName[i] == '/' {
			return fullName[:i], fullName[i+1:]
		}
	}
	return fullName, ""
}
