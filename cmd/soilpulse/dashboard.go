package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"soilpulse-sim/internal/dashboard"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render the Grafana dashboard for exported scans",
	Long:  "dashboard renders Grafana JSON for the configured GreptimeDB scan table. The datasource UID is read from " + dashboard.DatasourceEnv + ".",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		paths, err := dashboard.Render(dashboardOut, cfg.Export.Greptime)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
}
