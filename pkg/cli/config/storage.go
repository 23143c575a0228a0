package config

import "github.com/urfave/cli/v3"

// Storage holds artifact storage configuration
type Storage struct {
	Bucket string
	Prefix string
}

// Flags returns CLI flags for storage configuration
func (c *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "artifact-bucket",
			Usage:       "Cloud Storage bucket for job artifacts (artifact steps disabled when empty)",
			Destination: &c.Bucket,
			Sources:     cli.EnvVars("DROVER_ARTIFACT_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "artifact-prefix",
			Usage:       "Object name prefix for job artifacts",
			Value:       "artifacts",
			Destination: &c.Prefix,
			Sources:     cli.EnvVars("DROVER_ARTIFACT_PREFIX"),
		},
	}
}
