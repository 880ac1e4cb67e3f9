package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bluewise.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigLayers(t *testing.T) {
	path := writeConfig(t, `
[llm]
api_key = "from-file"
timeout = "45s"

[mailgun]
domain = "mg.example.com"
region = "eu"

[orchestrator.keywords]
send = ["ship it"]

[business]
timezone = "Europe/Paris"
`)
	t.Setenv("BLUEWISE_LLM__API_KEY", "from-env")
	t.Setenv("BLUEWISE_SERVER__PORT", "9000")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.APIKey, "environment wins over the file")
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "eu", cfg.Mailgun.Region)
	assert.Equal(t, 12*time.Second, cfg.Mailgun.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Telnyx.Timeout)
	assert.Equal(t, []string{"ship it"}, cfg.Orchestrator.Keywords.Send)
	assert.Empty(t, cfg.Orchestrator.Keywords.Draft)
	assert.Equal(t, 4, cfg.Orchestrator.MaxTurns)
	assert.Equal(t, 1200, cfg.Guardrails.SMSMaxLength)
	assert.Equal(t, 9, cfg.Business.DefaultDueHour)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())

	require.NoError(t, Validate(cfg))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.jwt_secret", envKey("BLUEWISE_SERVER__JWT_SECRET"))
	assert.Equal(t, "llm.api_key", envKey("BLUEWISE_LLM__API_KEY"))
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadConfig(writeConfig(t, "[llm]\napi_key = \"k\"\n"))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "palm" }, "invalid config.llm.provider"},
		{"missing key", func(c *Config) { c.LLM.APIKey = "" }, "openai api_key is required"},
		{"bad timezone", func(c *Config) { c.Business.Timezone = "Mars/Olympus" }, "invalid business timezone"},
		{"soft over hard", func(c *Config) { c.Guardrails.SMSSoftLimit = 2000 }, "exceeds sms_max_length"},
		{"mailgun region", func(c *Config) { c.Mailgun.Region = "apac" }, "invalid config.mailgun.region"},
		{"mailgun domain", func(c *Config) { c.Mailgun.APIKey = "key" }, "mailgun domain is required"},
		{"due hour", func(c *Config) { c.Business.DefaultDueHour = 24 }, "invalid config.business.defaultduehour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("ollama needs no key", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.LLM.Provider = "ollama"
		cfg.LLM.APIKey = ""
		assert.NoError(t, Validate(cfg))
	})
}

func TestValidateServer(t *testing.T) {
	cfg := validConfig(t)
	cfg.Server.JWTSecret = "short"
	assert.Error(t, ValidateServer(cfg))

	cfg.Server.JWTSecret = "0123456789abcdef"
	assert.NoError(t, ValidateServer(cfg))
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bluewise.toml")
	require.NoError(t, InitConfig(path))
	assert.Error(t, InitConfig(path), "existing files are not overwritten")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mg.example.com", cfg.Mailgun.Domain)
	assert.NoError(t, Validate(cfg))
}
