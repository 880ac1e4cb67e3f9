package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/bluewise/internal/config"
	"github.com/bluewise/internal/database"
	"github.com/bluewise/internal/logging"
)

// ConfigCheckResult holds the result of configuration validation
type ConfigCheckResult struct {
	Missing  []string          // Required settings that are missing
	Present  map[string]string // Settings that are set (masked values)
	Warnings []string          // Non-fatal warnings
}

// EnvCommand returns the env command
func EnvCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "Inspect the runtime environment",
		Subcommands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Report required and optional settings with masked values",
				Action: func(c *cli.Context) error {
					cfg, err := config.LoadConfig(c.String("config"))
					if err != nil {
						return fmt.Errorf("failed to load config: %w", err)
					}
					result := CheckRequiredConfig(cfg)
					PrintConfigCheck(c.App.Writer, result)
					if len(result.Missing) > 0 {
						return cli.Exit("", 1)
					}
					return nil
				},
			},
		},
	}
}

// CheckRequiredConfig validates that the settings the assistant needs are present
func CheckRequiredConfig(cfg *config.Config) *ConfigCheckResult {
	result := &ConfigCheckResult{
		Missing:  []string{},
		Present:  make(map[string]string),
		Warnings: []string{},
	}

	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			result.Missing = append(result.Missing, name)
			return
		}
		result.Present[name] = logging.MaskSecret(value)
	}
	optional := func(name, value, warning string) {
		if strings.TrimSpace(value) == "" {
			result.Warnings = append(result.Warnings, warning)
			return
		}
		result.Present[name] = logging.MaskSecret(value)
	}

	if cfg.LLM.Provider != "ollama" {
		require("llm.api_key", cfg.LLM.APIKey)
	}
	dbURL, err := database.ResolveURL(cfg.Database.URL)
	if err != nil {
		dbURL = ""
	}
	require("database.url", dbURL)
	require("server.jwt_secret", cfg.Server.JWTSecret)

	optional("telnyx.api_key", cfg.Telnyx.APIKey, "telnyx.api_key is not set, SMS sending is disabled")
	optional("mailgun.api_key", cfg.Mailgun.APIKey, "mailgun.api_key is not set, email sending is disabled")
	if cfg.Mailgun.APIKey != "" && cfg.Mailgun.Domain == "" {
		result.Missing = append(result.Missing, "mailgun.domain")
	}

	if len(cfg.Server.JWTSecret) > 0 && len(cfg.Server.JWTSecret) < minJWTSecret {
		result.Warnings = append(result.Warnings, fmt.Sprintf("server.jwt_secret is shorter than %d characters", minJWTSecret))
	}
	return result
}

// PrintConfigCheck prints the configuration check results
func PrintConfigCheck(w io.Writer, result *ConfigCheckResult) {
	fmt.Fprintln(w, "=== Configuration Check ===")
	fmt.Fprintln(w, "")

	if len(result.Missing) > 0 {
		fmt.Fprintln(w, "❌ Missing required settings:")
		for _, v := range result.Missing {
			fmt.Fprintf(w, "   - %s\n", v)
		}
		fmt.Fprintln(w, "")
	}

	if len(result.Present) > 0 {
		keys := make([]string, 0, len(result.Present))
		for k := range result.Present {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "✓ Configured settings:")
		for _, k := range keys {
			fmt.Fprintf(w, "   - %s = %s\n", k, result.Present[k])
		}
		fmt.Fprintln(w, "")
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "⚠ Warning: %s\n", warning)
	}

	if len(result.Missing) == 0 {
		fmt.Fprintln(w, "✓ All required configuration is present")
	}

	fmt.Fprintln(w, "============================")
}

// LoadEnvFile loads environment variables from a file, overwriting existing ones.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}

	return scanner.Err()
}
