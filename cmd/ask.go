package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/bluewise/internal/config"
	"github.com/bluewise/internal/logging"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/pkg/models"
)

// AskCommand returns the ask command
func AskCommand() *cli.Command {
	return &cli.Command{
		Name:  "ask",
		Usage: "Ask the assistant one question and print the result as JSON",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "customer",
				Usage:    "Customer (tenant) id",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "question",
				Aliases:  []string{"q"},
				Usage:    "The question to ask",
				Required: true,
			},
			&cli.Int64Flag{
				Name:  "active-lead",
				Usage: "Lead currently open in the UI",
			},
			&cli.StringFlag{
				Name:  "active-lead-name",
				Usage: "Display name of the active lead",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Read the session (lastSummary, lastDraft) from a JSON `FILE`",
			},
		},
		Action: runAsk,
	}
}

func runAsk(c *cli.Context) error {
	customerID := c.Int64("customer")
	if customerID <= 0 {
		return fmt.Errorf("--customer must be a positive id")
	}

	session, err := askSession(c.String("session"), c.Int64("active-lead"), c.String("active-lead-name"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c.String("config"), config.Validate)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	ctx := logging.WithRequest(c.Context, uuid.NewString(), customerID)
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	env, err := app.Orchestrator.Ask(ctx, store.NewTenant(customerID, app.Store), c.String("question"), session)
	if err != nil {
		return fmt.Errorf("%s", models.UserMessage(err))
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// askSession loads the optional session file, then applies the active lead flags
func askSession(path string, activeLead int64, activeLeadName string) (models.Session, error) {
	var session models.Session
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return session, fmt.Errorf("failed to read session file: %w", err)
		}
		if err := json.Unmarshal(raw, &session); err != nil {
			return session, fmt.Errorf("failed to parse session file: %w", err)
		}
	}
	if activeLead > 0 {
		session.ActiveLeadID = activeLead
	}
	if name := strings.TrimSpace(activeLeadName); name != "" {
		session.ActiveLeadName = name
	}
	return session, nil
}
