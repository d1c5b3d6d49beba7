package main

import "github.com/spf13/cobra"

// buildInfoCmd creates the "info" command, printing the resolved
// configuration (with secrets redacted) without starting the server.
func buildInfoCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runInfo(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "gateway.yaml", "Path to YAML configuration file")
	return cmd
}

// buildInitCmd creates the "init" command, writing a starter config file.
func buildInitCmd() *cobra.Command {
	var (
		configPath string
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runInit(cmd, configPath, force)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "gateway.yaml", "Path to write the configuration file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
