package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"soilpulse-sim/internal/config"
)

var (
	configPath string
	schemaPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "soilpulse",
	Short:         "SoilPulse probe simulator",
	Long:          "SoilPulse simulates a soil probe scanning fallout ground, with a terminal dashboard, headless scans and scan log tooling.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to configuration YAML")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "Path to CUE schema file (embedded schema when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(replayCmd)
}

// loadConfig reads the configuration selected by the persistent flags. The
// default path may be missing, in which case defaults apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	optional := !cmd.Flags().Changed("config")
	cfg, err := config.LoadOrDefault(configPath, schemaPath, optional)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}
