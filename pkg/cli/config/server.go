package config

import "github.com/urfave/cli/v3"

// Server holds server configuration
type Server struct {
	Addr           string
	APITokenSecret string
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("DROVER_ADDR"),
		},
		&cli.StringFlag{
			Name:        "api-token-secret",
			Usage:       "Secret for management API bearer tokens (API is unauthenticated when empty)",
			Destination: &c.APITokenSecret,
			Sources:     cli.EnvVars("DROVER_API_TOKEN_SECRET"),
		},
	}
}
