package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/bluewise/internal/config"
	"github.com/bluewise/internal/logging"
)

// ConfigCommand returns the config command
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the assistant configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample bluewise.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "bluewise.toml",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: runConfigInit,
			},
			{
				Name:   "validate",
				Usage:  "Validate the configuration and list the enabled channels",
				Action: runConfigValidate,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration with secrets masked",
				Action: runConfigShow,
			},
		},
	}
}

func runConfigInit(c *cli.Context) error {
	outputPath := c.String("output")

	if c.Bool("force") {
		if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to replace %s: %w", outputPath, err)
		}
	}
	if err := config.InitConfig(outputPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Created %s. Set llm.api_key and server.jwt_secret before running serve.\n", outputPath)
	return nil
}

func runConfigValidate(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"), config.Validate)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Configuration is valid (llm %s/%s, sms %s, email %s)\n",
		cfg.LLM.Provider, cfg.LLM.Model,
		enabled(cfg.Telnyx.APIKey != ""), enabled(cfg.Mailgun.APIKey != "" && cfg.Mailgun.Domain != ""))
	return nil
}

func runConfigShow(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"), func(*config.Config) error { return nil })
	if err != nil {
		return err
	}
	printConfig(c.App.Writer, cfg)
	return nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	rows := [][2]string{
		{"llm.provider", cfg.LLM.Provider},
		{"llm.model", cfg.LLM.Model},
		{"llm.api_key", masked(cfg.LLM.APIKey)},
		{"telnyx.api_key", masked(cfg.Telnyx.APIKey)},
		{"mailgun.api_key", masked(cfg.Mailgun.APIKey)},
		{"mailgun.domain", cfg.Mailgun.Domain},
		{"mailgun.region", cfg.Mailgun.Region},
		{"database.url", masked(cfg.Database.URL)},
		{"server.port", fmt.Sprint(cfg.Server.Port)},
		{"server.jwt_secret", masked(cfg.Server.JWTSecret)},
		{"guardrails.sms_max_length", fmt.Sprint(cfg.Guardrails.SMSMaxLength)},
		{"orchestrator.max_turns", fmt.Sprint(cfg.Orchestrator.MaxTurns)},
		{"business.timezone", cfg.Business.Timezone},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-26s %s\n", r[0], r[1])
	}
}

func masked(s string) string {
	if s == "" {
		return "(unset)"
	}
	return logging.MaskSecret(s)
}

func enabled(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
