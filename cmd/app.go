package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bluewise/internal/aiconnectors"
	"github.com/bluewise/internal/config"
	"github.com/bluewise/internal/database"
	"github.com/bluewise/internal/guardrails"
	"github.com/bluewise/internal/llm"
	"github.com/bluewise/internal/orchestrator"
	"github.com/bluewise/internal/providers/mailgun"
	"github.com/bluewise/internal/providers/telnyx"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/internal/tools"
)

// App is the wired runtime shared by serve and ask
type App struct {
	Config       *config.Config
	Store        store.Store
	Registry     *tools.Registry
	Orchestrator *orchestrator.Orchestrator
	close        func()
}

// Close releases the database pool
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}

// loadConfig reads and validates the configuration named by the global --config flag
func loadConfig(path string, validate func(*config.Config) error) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NewApp connects the store and builds the model, providers, registry and orchestrator
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	model, err := aiconnectors.NewModel(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}

	dbURL, err := resolveDatabaseURL(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := store.NewPool(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	client := llm.NewClient(model, llm.ClientOptions{Timeout: cfg.LLM.Timeout, Temperature: cfg.LLM.Temperature})
	registry := tools.NewRegistry(toolDeps(cfg, client, loc))

	log.Info().
		Str("llm_provider", cfg.LLM.Provider).
		Str("llm_model", cfg.LLM.Model).
		Bool("sms_enabled", cfg.Telnyx.APIKey != "").
		Bool("email_enabled", cfg.Mailgun.APIKey != "").
		Str("timezone", loc.String()).
		Msg("Assistant wired")

	return &App{
		Config:       cfg,
		Store:        store.NewPostgres(pool),
		Registry:     registry,
		Orchestrator: orchestrator.New(client, registry, orchestratorConfig(cfg, loc)),
		close:        pool.Close,
	}, nil
}

// policy maps the guardrail settings onto a Policy in the business timezone
func policy(cfg *config.Config, loc *time.Location) guardrails.Policy {
	return guardrails.Policy{
		SMSMaxLength:   cfg.Guardrails.SMSMaxLength,
		SMSSoftLimit:   cfg.Guardrails.SMSSoftLimit,
		StaleAfterDays: cfg.Guardrails.StaleAfterDays,
		DefaultDueHour: cfg.Business.DefaultDueHour,
		Location:       loc,
	}
}

func toolDeps(cfg *config.Config, client *llm.Client, loc *time.Location) tools.Deps {
	deps := tools.Deps{
		LLM:        client,
		Policy:     policy(cfg, loc),
		SenderName: cfg.Business.SenderName,
	}
	if cfg.Telnyx.APIKey != "" {
		deps.SMS = telnyx.New(telnyx.Config{
			APIKey:        cfg.Telnyx.APIKey,
			BaseURL:       cfg.Telnyx.BaseURL,
			Timeout:       cfg.Telnyx.Timeout,
			RatePerSecond: cfg.Telnyx.RatePerSecond,
		})
	}
	if cfg.Mailgun.APIKey != "" {
		sender := mailgun.New(mailgun.Config{
			APIKey:  cfg.Mailgun.APIKey,
			Domain:  cfg.Mailgun.Domain,
			Region:  cfg.Mailgun.Region,
			From:    cfg.Mailgun.From,
			Timeout: cfg.Mailgun.Timeout,
		})
		deps.Email = sender
		deps.EmailFrom = sender.DefaultFrom()
	}
	return deps
}

func orchestratorConfig(cfg *config.Config, loc *time.Location) orchestrator.Config {
	kw := cfg.Orchestrator.Keywords
	return orchestrator.Config{
		MaxTurns: cfg.Orchestrator.MaxTurns,
		Keywords: orchestrator.Keywords{
			Draft:      kw.Draft,
			SummaryRef: kw.SummaryRef,
			Send:       kw.Send,
			Update:     kw.Update,
		},
		Location: loc,
	}
}

func resolveDatabaseURL(cfg *config.Config) (string, error) {
	url, err := database.ResolveURL(cfg.Database.URL)
	if err != nil {
		return "", fmt.Errorf("failed to get database URL: %w", err)
	}
	return url, nil
}
