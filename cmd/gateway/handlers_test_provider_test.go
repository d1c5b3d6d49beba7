package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func writeTestProviderConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(configPath, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return configPath
}

func TestRunTestProviderUnknownProviderFails(t *testing.T) {
	configPath := writeTestProviderConfig(t, ""+
		"auth:\n  dev_mode: true\n"+
		"agent:\n  default_provider: openai\n"+
		"providers:\n  openai:\n    driver: openai\n    enabled: true\n")

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := runTestProvider(cmd, configPath, "anthropic", time.Second)
	if err == nil {
		t.Fatal("expected error for a provider name absent from the providers map")
	}
	if !strings.Contains(err.Error(), "not present") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunTestProviderDisabledProviderFails(t *testing.T) {
	configPath := writeTestProviderConfig(t, ""+
		"auth:\n  dev_mode: true\n"+
		"agent:\n  default_provider: anthropic\n"+
		"providers:\n  anthropic:\n    driver: anthropic\n    enabled: false\n")

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := runTestProvider(cmd, configPath, "", time.Second)
	if err == nil {
		t.Fatal("expected error for a disabled provider")
	}
	if !strings.Contains(err.Error(), "not enabled") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunTestProviderNoDefaultConfigured(t *testing.T) {
	configPath := writeTestProviderConfig(t, ""+
		"auth:\n  dev_mode: true\n"+
		"agent:\n  default_provider: \"\"\n")

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := runTestProvider(cmd, configPath, "", time.Second)
	if err == nil {
		t.Fatal("expected error when no provider is specified and no default is configured")
	}
	if !strings.Contains(err.Error(), "no provider specified") {
		t.Errorf("unexpected error: %v", err)
	}
}
