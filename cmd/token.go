package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/bluewise/internal/api/auth"
	"github.com/bluewise/internal/config"
)

const minJWTSecret = 16

// TokenCommand returns the token command
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue API tokens",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Print a bearer token for a customer",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "customer",
						Usage:    "Customer (tenant) id",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime",
						Value: auth.DefaultTokenDuration,
					},
				},
				Action: runTokenIssue,
			},
		},
	}
}

func runTokenIssue(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if len(cfg.Server.JWTSecret) < minJWTSecret {
		return fmt.Errorf("server jwt_secret must be at least %d characters", minJWTSecret)
	}

	token, err := auth.NewTokenService(cfg.Server.JWTSecret).IssueToken(c.Int64("customer"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
