package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// Policy holds repository policy configuration
type Policy struct {
	Path string
}

// Flags returns CLI flags for policy configuration
func (c *Policy) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy-file",
			Usage:       "Path to the repository policy TOML file (all repositories allowed when empty)",
			Destination: &c.Path,
			Sources:     cli.EnvVars("DROVER_POLICY_FILE"),
		},
	}
}

// Load reads and parses the policy file. A missing path yields an
// empty policy.
func (c *Policy) Load() (*model.Policy, error) {
	if c.Path == "" {
		return &model.Policy{}, nil
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", c.Path))
	}

	var policy model.Policy
	if err := toml.Unmarshal(data, &policy); err != nil {
		return nil, goerr.Wrap(err, "failed to parse policy file", goerr.V("path", c.Path))
	}

	return &policy, nil
}
