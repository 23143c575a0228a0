package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/cli/config"
	githubctrl "github.com/m-mizutani/drover/pkg/controller/github"
	controller "github.com/m-mizutani/drover/pkg/controller/http"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/infra/firestore"
	"github.com/m-mizutani/drover/pkg/infra/memory"
	"github.com/m-mizutani/drover/pkg/infra/report"
	"github.com/m-mizutani/drover/pkg/infra/slack"
	"github.com/m-mizutani/drover/pkg/infra/storage"
	"github.com/m-mizutani/drover/pkg/runner"
	"github.com/m-mizutani/drover/pkg/usecase"
	"github.com/m-mizutani/drover/pkg/workflow"
)

func cmdServe() *cli.Command {
	var (
		serverCfg    config.Server
		githubCfg    config.GitHub
		firestoreCfg config.Firestore
		storageCfg   config.Storage
		slackCfg     config.Slack
		sentryCfg    config.Sentry
		geminiCfg    config.Gemini
		policyCfg    config.Policy
		workflowsCfg config.Workflows
		runnerCfg    config.Runner
		reportCfg    config.Report
	)

	flags := serverCfg.Flags()
	flags = append(flags, githubCfg.Flags()...)
	flags = append(flags, firestoreCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, policyCfg.Flags()...)
	flags = append(flags, workflowsCfg.Flags()...)
	flags = append(flags, runnerCfg.Flags()...)
	flags = append(flags, reportCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting drover server",
				slog.String("addr", serverCfg.Addr),
				slog.String("workflows_dir", workflowsCfg.Dir),
			)

			if err := sentryCfg.Init(); err != nil {
				return err
			}

			workflows, err := workflow.LoadDir(workflowsCfg.Dir)
			if err != nil {
				return goerr.Wrap(err, "failed to load workflows")
			}
			logger.Info("Workflows loaded", slog.Int("count", len(workflows)))

			policy, err := policyCfg.Load()
			if err != nil {
				return err
			}

			githubClient, err := githubCfg.NewClient()
			if err != nil {
				return goerr.Wrap(err, "failed to create GitHub client")
			}

			var store interfaces.RunStore
			if firestoreCfg.ProjectID != "" {
				fs, err := firestore.New(ctx, firestoreCfg.ProjectID)
				if err != nil {
					return goerr.Wrap(err, "failed to create Firestore store")
				}
				defer fs.Close()
				store = fs
			} else {
				logger.Warn("No Firestore project configured, using in-memory run store")
				store = memory.New()
			}

			runnerOpts := []runner.Option{
				runner.WithMaxParallel(runnerCfg.MaxParallel),
			}
			if runnerCfg.WorkspaceDir != "" {
				runnerOpts = append(runnerOpts, runner.WithWorkspaceRoot(runnerCfg.WorkspaceDir))
			}
			if storageCfg.Bucket != "" {
				artifacts, err := storage.New(ctx, storageCfg.Bucket, storageCfg.Prefix)
				if err != nil {
					return goerr.Wrap(err, "failed to create artifact store")
				}
				runnerOpts = append(runnerOpts, runner.WithArtifactStore(artifacts))
			}
			if reportCfg.CoverageURL != "" || reportCfg.PublishURL != "" {
				reports := report.New(reportCfg.CoverageURL, reportCfg.PublishURL,
					report.WithToken(reportCfg.Token))
				runnerOpts = append(runnerOpts, runner.WithReportClient(reports))
			}
			jobRunner := runner.New(githubClient, runnerOpts...)

			triggerOpts := []usecase.TriggerOption{
				usecase.WithPolicy(policy),
			}
			if slackCfg.WebhookURL != "" {
				triggerOpts = append(triggerOpts, usecase.WithNotifier(slack.New(slackCfg.WebhookURL)))
			}
			if geminiCfg.ProjectID != "" {
				llmClient, err := gemini.New(ctx, geminiCfg.Location, geminiCfg.ProjectID,
					gemini.WithModel(geminiCfg.Model),
				)
				if err != nil {
					return goerr.Wrap(err, "failed to create Gemini client")
				}
				summarizer, err := usecase.NewSummarizer(llmClient, githubClient)
				if err != nil {
					return err
				}
				triggerOpts = append(triggerOpts, usecase.WithSummarizer(summarizer))
			}

			trigger := usecase.NewTrigger(store, githubClient, jobRunner, workflows, triggerOpts...)
			webhookUC := usecase.NewWebhook(trigger)
			processor := githubctrl.NewEventProcessor(webhookUC)

			// Create HTTP server with options
			server, err := controller.NewServer(
				ctx,
				processor,
				trigger,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(githubCfg.WebhookSecret),
				controller.WithAPITokenSecret(serverCfg.APITokenSecret),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
