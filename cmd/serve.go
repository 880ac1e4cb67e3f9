package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/bluewise/internal/api"
	"github.com/bluewise/internal/api/auth"
	"github.com/bluewise/internal/config"
	"github.com/bluewise/internal/logging"
)

// ServeCommand returns the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on, overrides server.port",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"), config.ValidateServer)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	port := cfg.Server.Port
	if c.IsSet("port") {
		port = c.Int("port")
	}

	server := api.NewServer(port, api.Deps{
		Store:        app.Store,
		Registry:     app.Registry,
		Orchestrator: app.Orchestrator,
		Tokens:       auth.NewTokenService(cfg.Server.JWTSecret),
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
	})
	return server.Start(ctx)
}

