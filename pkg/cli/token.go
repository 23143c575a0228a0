package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	controller "github.com/m-mizutani/drover/pkg/controller/http"
)

func cmdToken() *cli.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)

	return &cli.Command{
		Name:  "token",
		Usage: "Mint a bearer token for the management API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "api-token-secret",
				Usage:       "Secret the server validates tokens with",
				Required:    true,
				Destination: &secret,
				Sources:     cli.EnvVars("DROVER_API_TOKEN_SECRET"),
			},
			&cli.StringFlag{
				Name:        "subject",
				Usage:       "Token subject, e.g. the operator name",
				Value:       "operator",
				Destination: &subject,
			},
			&cli.DurationFlag{
				Name:        "ttl",
				Usage:       "Token lifetime",
				Value:       24 * time.Hour,
				Destination: &ttl,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			token, err := controller.IssueToken(secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}
