package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "info", "test_provider", "init"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestResolveConfigPathDefault(t *testing.T) {
	if got := resolveConfigPath(""); got != "gateway.yaml" {
		t.Errorf("resolveConfigPath(\"\") = %q, want %q", got, "gateway.yaml")
	}
	if got := resolveConfigPath("/etc/gateway/custom.yaml"); got != "/etc/gateway/custom.yaml" {
		t.Errorf("resolveConfigPath passthrough failed: got %q", got)
	}
}
