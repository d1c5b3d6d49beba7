package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the gateway.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		host       string
		port       int
		logLevel   string
		dev        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		Long: `Start the gateway server.

The server will:
1. Load configuration from the specified file (or gateway.yaml)
2. Acquire the single-instance lock for that configuration
3. Build the broker, provider registry, prompt manager, and agent engine
4. Start the worker pool draining the broker's priority queue
5. Accept Minecraft Bedrock Edition WebSocket connections on server.host:server.port

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  gateway serve

  # Start with a custom config
  gateway serve --config /etc/gateway/production.yaml

  # Start with debug logging
  gateway serve --debug

  # Override the listen address and log level
  gateway serve --host 0.0.0.0 --port 19131 --log-level debug

  # Run without auth, for local development against a single world
  gateway serve --dev`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runServe(cmd.Context(), serveOptions{
				configPath: configPath,
				debug:      debug,
				host:       host,
				port:       port,
				logLevel:   logLevel,
				dev:        dev,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gateway.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")
	cmd.Flags().StringVar(&host, "host", "", "Override server.host from the config file")
	cmd.Flags().IntVar(&port, "port", 0, "Override server.port from the config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level from the config file (debug, info, warn, error)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Run in dev mode: disable auth regardless of auth.dev_mode in the config file")

	return cmd
}
