package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/bluewise/internal/config"
	"github.com/bluewise/internal/llm"
	"github.com/bluewise/internal/llm/llmtest"
	"github.com/bluewise/internal/orchestrator"
	"github.com/bluewise/pkg/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bluewise.toml")
	require.NoError(t, os.WriteFile(path, []byte("[llm]\napi_key = \"k\"\n"), 0o600))
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	return cfg
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Guardrails.SMSMaxLength = 900
	cfg.Business.DefaultDueHour = 10
	loc, err := cfg.Location()
	require.NoError(t, err)

	p := policy(cfg, loc)
	assert.Equal(t, 900, p.SMSMaxLength)
	assert.Equal(t, 320, p.SMSSoftLimit)
	assert.Equal(t, 30, p.StaleAfterDays)
	assert.Equal(t, 10, p.DefaultDueHour)
	assert.Equal(t, "America/Toronto", p.Location.String())
}

func TestToolDepsProviders(t *testing.T) {
	cfg := testConfig(t)
	client := llm.NewClient(&llmtest.FakeModel{}, llm.ClientOptions{})

	deps := toolDeps(cfg, client, time.UTC)
	assert.Nil(t, deps.SMS)
	assert.Nil(t, deps.Email)
	assert.Empty(t, deps.EmailFrom)

	cfg.Telnyx.APIKey = "tx"
	cfg.Mailgun.APIKey = "mg"
	cfg.Mailgun.Domain = "mg.example.com"
	deps = toolDeps(cfg, client, time.UTC)
	require.NotNil(t, deps.SMS)
	require.NotNil(t, deps.Email)
	assert.Equal(t, "telnyx", deps.SMS.Name())
	assert.Equal(t, "BlueWise AI <sales@mg.example.com>", deps.EmailFrom)
}

func TestOrchestratorConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Orchestrator.MaxTurns = 3
	cfg.Orchestrator.Keywords.Send = []string{"expédie"}

	oc := orchestratorConfig(cfg, time.UTC)
	want := orchestrator.Config{
		MaxTurns: 3,
		Keywords: orchestrator.Keywords{Send: []string{"expédie"}},
	}
	assert.Same(t, time.UTC, oc.Location)
	if diff := cmp.Diff(want, oc, cmpopts.IgnoreFields(orchestrator.Config{}, "Now", "Location")); diff != "" {
		t.Errorf("orchestratorConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestAskSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"activeLeadId": 5, "lastDraft": {"leadId": 5, "channel": "sms", "to": "+15145550101", "body": "Hi"}}`), 0o600))

	s, err := askSession(path, 0, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.ActiveLeadID)
	require.NotNil(t, s.LastDraft)
	assert.Equal(t, models.ChannelSMS, s.LastDraft.Channel)

	s, err = askSession(path, 6, " Sophie ")
	require.NoError(t, err)
	assert.Equal(t, int64(6), s.ActiveLeadID)
	assert.Equal(t, "Sophie", s.ActiveLeadName)

	_, err = askSession(filepath.Join(t.TempDir(), "missing.json"), 0, "")
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bluewise.toml")
	var out bytes.Buffer
	app := &cli.App{
		Writer: &out,
		Flags:  []cli.Flag{&cli.StringFlag{Name: "config"}},
		Commands: []*cli.Command{
			ConfigCommand(),
			TokenCommand(),
		},
	}

	require.NoError(t, app.Run([]string{"bluewise", "config", "init", "-o", path}))
	require.FileExists(t, path)
	assert.Error(t, app.Run([]string{"bluewise", "config", "init", "-o", path}), "existing file is kept")
	require.NoError(t, app.Run([]string{"bluewise", "config", "init", "-o", path, "--force"}))

	out.Reset()
	require.NoError(t, app.Run([]string{"bluewise", "--config", path, "config", "validate"}))
	assert.Equal(t, "Configuration is valid (llm openai/gpt-4o-mini, sms on, email on)\n", out.String())

	out.Reset()
	require.NoError(t, app.Run([]string{"bluewise", "--config", path, "config", "show"}))
	assert.Regexp(t, `llm\.api_key\s+yo\*+ey\n`, out.String())
	assert.Regexp(t, `business\.timezone\s+America/Toronto\n`, out.String())
	assert.NotContains(t, out.String(), "your-openai-api-key")

	out.Reset()
	require.NoError(t, app.Run([]string{"bluewise", "--config", path, "token", "issue", "--customer", "3"}))
	assert.Regexp(t, `^[\w-]+\.[\w-]+\.[\w-]+\n$`, out.String())
}
