package config

import "github.com/urfave/cli/v3"

// Workflows holds workflow definition configuration
type Workflows struct {
	Dir string
}

// Flags returns CLI flags for workflow configuration
func (c *Workflows) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "workflows-dir",
			Usage:       "Directory containing workflow YAML files",
			Required:    true,
			Destination: &c.Dir,
			Sources:     cli.EnvVars("DROVER_WORKFLOWS_DIR"),
		},
	}
}
