package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"soilpulse-sim/internal/logging"
	"soilpulse-sim/internal/narration"
	"soilpulse-sim/internal/scenario"
	"soilpulse-sim/internal/sim"
	"soilpulse-sim/internal/soil"
)

var (
	scanTarget   string
	scanScenario string
	scanJSON     bool
	scanTimeout  time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a headless scan or scenario",
	Long: "scan inserts the probe and prints each narrated result. Use --target for a single scan " +
		"or --scenario for a built-in script name or a YAML script path.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (scanTarget == "") == (scanScenario == "") {
			return fmt.Errorf("exactly one of --target or --scenario is required")
		}
		var sc *scenario.Scenario
		if scanTarget != "" {
			target, err := soil.ParseTarget(scanTarget)
			if err != nil {
				return err
			}
			sc = &scenario.Scenario{
				Name: "single",
				Steps: []scenario.Step{
					{Action: scenario.ActionInsert, Target: string(target)},
					{Action: scenario.ActionAwait, Duration: scanTimeout},
				},
			}
		} else {
			var err error
			if sc, err = scenario.Lookup(scanScenario); err != nil {
				return err
			}
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := logging.NewWithLevel(os.Stderr, cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, log)

		writer, cleanup, err := newWriters(cfg, stdoutWriter(cfg, scanJSON), log)
		if err != nil {
			return err
		}
		defer cleanup()

		ctl := sim.NewController(narration.New(cfg.Narration, log), sim.WithWriter(writer), sim.WithLogger(log))
		defer ctl.Close()

		results, err := scenario.Run(ctx, sc, ctl)
		if err != nil {
			return fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		log.Debug("scenario finished", "scenario", sc.Name, "results", len(results))
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanTarget, "target", "", "Scan target: UNSAFE, RECOVERING or READY")
	scanCmd.Flags().StringVar(&scanScenario, "scenario", "", "Built-in scenario name or path to a scenario YAML")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print JSON lines even on a terminal")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", scenario.DefaultAwaitTimeout, "Maximum wait for a narrated result")
}
