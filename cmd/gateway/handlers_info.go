package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mcbe-gateway/agent-gateway/internal/config"
)

// runInfo loads configPath and prints it back out with every provider's
// api_key redacted, so operators can confirm what the gateway will
// actually run with before starting it for real.
func runInfo(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	redacted := cfg
	redacted.Providers = make(map[string]config.Provider, len(cfg.Providers))
	for name, p := range cfg.Providers {
		if p.APIKey != "" {
			p.APIKey = "********"
		}
		redacted.Providers[name] = p
	}
	if cfg.Auth.JWTSecret != "" {
		redacted.Auth.JWTSecret = "********"
	}
	if cfg.Auth.DefaultPassword != "" {
		redacted.Auth.DefaultPassword = "********"
	}

	out, err := yaml.Marshal(redacted)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

// runInit writes a starter config file at configPath, refusing to
// overwrite an existing file unless force is set.
func runInit(cmd *cobra.Command, configPath string, force bool) error {
	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists; pass --force to overwrite", configPath)
		}
	}

	cfg := config.Default()
	cfg.Providers = map[string]config.Provider{
		"anthropic": {Driver: "anthropic", Model: "claude-sonnet-4-5-20250929", APIKey: "${ANTHROPIC_API_KEY}", Enabled: true},
	}
	cfg.Auth.DefaultPassword = "${GATEWAY_PASSWORD}"

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(configPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written: %s\n", configPath)
	return nil
}
