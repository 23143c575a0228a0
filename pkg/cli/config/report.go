package config

import "github.com/urfave/cli/v3"

// Report holds coverage and package publishing configuration
type Report struct {
	CoverageURL string
	PublishURL  string
	Token       string
}

// Flags returns CLI flags for report configuration
func (c *Report) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "coverage-url",
			Usage:       "Coverage service upload endpoint (coverage steps disabled when empty)",
			Destination: &c.CoverageURL,
			Sources:     cli.EnvVars("DROVER_COVERAGE_URL"),
		},
		&cli.StringFlag{
			Name:        "publish-url",
			Usage:       "Package index upload endpoint (publish steps disabled when empty)",
			Destination: &c.PublishURL,
			Sources:     cli.EnvVars("DROVER_PUBLISH_URL"),
		},
		&cli.StringFlag{
			Name:        "report-token",
			Usage:       "Bearer token for report uploads",
			Destination: &c.Token,
			Sources:     cli.EnvVars("DROVER_REPORT_TOKEN"),
		},
	}
}
