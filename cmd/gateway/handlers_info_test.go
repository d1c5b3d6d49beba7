package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestRunInitThenInfoRedactsSecrets(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-super-secret")
	t.Setenv("GATEWAY_PASSWORD", "hunter2")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "gateway.yaml")

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runInit(cmd, configPath, false); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	out.Reset()
	if err := runInfo(cmd, configPath); err != nil {
		t.Fatalf("runInfo: %v", err)
	}

	rendered := out.String()
	if strings.Contains(rendered, "sk-test-super-secret") || strings.Contains(rendered, "hunter2") {
		t.Errorf("expected secrets to be redacted, got:\n%s", rendered)
	}
	if !strings.Contains(rendered, "********") {
		t.Errorf("expected redaction marker in output, got:\n%s", rendered)
	}
}

func TestRunInitRefusesToOverwriteWithoutForce(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "gateway.yaml")
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	if err := runInit(cmd, configPath, false); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	if err := runInit(cmd, configPath, false); err == nil {
		t.Fatal("expected second runInit without --force to fail")
	}
	if err := runInit(cmd, configPath, true); err != nil {
		t.Fatalf("runInit with force: %v", err)
	}
}
