package config

import "github.com/urfave/cli/v3"

// Runner holds job execution configuration
type Runner struct {
	WorkspaceDir string
	MaxParallel  int
}

// Flags returns CLI flags for runner configuration
func (c *Runner) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "workspace-dir",
			Usage:       "Parent directory for job workspaces (system temp dir when empty)",
			Destination: &c.WorkspaceDir,
			Sources:     cli.EnvVars("DROVER_WORKSPACE_DIR"),
		},
		&cli.IntFlag{
			Name:        "max-parallel",
			Usage:       "Maximum number of jobs executing concurrently",
			Value:       4,
			Destination: &c.MaxParallel,
			Sources:     cli.EnvVars("DROVER_MAX_PARALLEL"),
		},
	}
}
