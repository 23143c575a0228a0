package config

import "github.com/urfave/cli/v3"

// Firestore holds run store configuration. An empty project ID selects
// the in-memory store, which loses state on restart.
type Firestore struct {
	ProjectID string
}

// Flags returns CLI flags for Firestore configuration
func (c *Firestore) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Google Cloud project ID for the Firestore run store (in-memory store when empty)",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("DROVER_FIRESTORE_PROJECT_ID"),
		},
	}
}
