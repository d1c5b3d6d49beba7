package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcbe-gateway/agent-gateway/internal/config"
	"github.com/mcbe-gateway/agent-gateway/internal/providers"
)

// runTestProvider implements the test_provider command: load config,
// resolve one provider's Model from the registry, and drive one minimal
// Complete call to confirm the configured credentials and base URL
// actually reach the upstream API.
func runTestProvider(cmd *cobra.Command, configPath, providerName string, timeout time.Duration) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if providerName == "" {
		providerName = cfg.Agent.DefaultProvider
	}
	if providerName == "" {
		return fmt.Errorf("no provider specified and agent.default_provider is not set")
	}

	p, ok := cfg.Providers[providerName]
	if !ok {
		return fmt.Errorf("provider %q is not present in providers", providerName)
	}
	if !p.Enabled {
		return fmt.Errorf("provider %q is configured but not enabled", providerName)
	}

	registry := providers.NewRegistry(nil)
	defer registry.Shutdown()

	model, err := registry.GetModel(providers.Config{
		Provider: p.Driver,
		Model:    p.Model,
		BaseURL:  p.BaseURL,
		APIKey:   p.APIKey,
		Timeout:  p.Timeout,
		Enabled:  p.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to build provider %q: %w", providerName, err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	started := time.Now()
	result, err := model.Complete(ctx, providers.CompletionRequest{
		System:    "Reply with exactly one word: ok.",
		Messages:  []providers.CompletionMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 16,
	})
	if err != nil {
		return fmt.Errorf("connection test against provider %q (%s/%s) failed: %w", providerName, p.Driver, model.ModelID(), err)
	}

	fmt.Fprintf(out, "provider %q (%s/%s) reachable in %s\n", providerName, p.Driver, model.ModelID(), time.Since(started).Round(time.Millisecond))
	fmt.Fprintf(out, "response: %q\n", result.Text)
	fmt.Fprintf(out, "tokens: input=%d output=%d\n", result.InputTokens, result.OutputTokens)
	return nil
}
