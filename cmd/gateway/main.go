// Command gateway runs the MCBE WebSocket agent gateway.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "gateway",
		Short:        "MCBE WebSocket agent gateway",
		Long:         `gateway bridges a Minecraft Bedrock Edition world's WebSocket connect protocol to LLM agent providers, executing in-game commands on the model's behalf.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildInfoCmd(), buildTestProviderCmd(), buildInitCmd())
	return rootCmd
}

func resolveConfigPath(path string) string {
	if path == "" {
		return "gateway.yaml"
	}
	return path
}
