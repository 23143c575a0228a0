package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/cli/config"
	"github.com/m-mizutani/drover/pkg/workflow"
)

func cmdValidate() *cli.Command {
	var workflowsCfg config.Workflows
	var policyCfg config.Policy

	flags := append(workflowsCfg.Flags(), policyCfg.Flags()...)

	return &cli.Command{
		Name:  "validate",
		Usage: "Validate workflow definitions and policy without starting the server",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ok := color.New(color.FgGreen).SprintFunc()
			bad := color.New(color.FgRed).SprintFunc()

			workflows, err := workflow.LoadDir(workflowsCfg.Dir)
			if err != nil {
				fmt.Printf("%s %v\n", bad("✗"), err)
				return goerr.Wrap(err, "workflow validation failed")
			}

			for _, wf := range workflows {
				fmt.Printf("%s workflow %q: %d jobs, trigger %s\n",
					ok("✓"), wf.Name, len(wf.Jobs), wf.On.Event)
			}

			policy, err := policyCfg.Load()
			if err != nil {
				fmt.Printf("%s %v\n", bad("✗"), err)
				return goerr.Wrap(err, "policy validation failed")
			}
			if policyCfg.Path != "" {
				fmt.Printf("%s policy: %d repositories\n", ok("✓"), len(policy.Repositories))
			}

			return nil
		},
	}
}
