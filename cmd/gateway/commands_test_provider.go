package main

import (
	"time"

	"github.com/spf13/cobra"
)

// buildTestProviderCmd creates the "test_provider" command, which loads
// configuration, resolves one provider's Model, and issues a minimal
// completion to confirm its credentials and connectivity without starting
// the server.
func buildTestProviderCmd() *cobra.Command {
	var (
		configPath string
		provider   string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "test_provider",
		Short: "Test connectivity and credentials for a configured provider",
		Long: `Load configuration, resolve the named provider (or agent.default_provider
if --provider is omitted), and issue a minimal non-streaming completion
request against it. Reports the round trip's latency and token usage on
success; a non-zero exit and a diagnostic message on failure.`,
		Example: `  # Test the configured default provider
  gateway test_provider

  # Test a specific named provider entry
  gateway test_provider --provider openai`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runTestProvider(cmd, configPath, provider, timeout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gateway.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&provider, "provider", "", "Provider name to test (defaults to agent.default_provider)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Maximum time to wait for the test completion")

	return cmd
}
