package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"soilpulse-sim/internal/logging"
	"soilpulse-sim/internal/sim"
)

var (
	replayInput string
	replaySpeed float64
	replayJSON  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a scan log file",
	Long:  "replay feeds scan records from a JSONL scan log back to STDOUT and the configured exports.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// Replaying into the file being read would never end.
		cfg.Export.LogFile = ""
		log := logging.NewWithLevel(os.Stderr, cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		writer, cleanup, err := newWriters(cfg, stdoutWriter(cfg, replayJSON), log)
		if err != nil {
			return err
		}
		defer cleanup()

		n, err := sim.ReplayLogFile(ctx, replayInput, writer, replaySpeed)
		log.Info("replay finished", "records", n)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to scan log file (JSONL)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier; 0 replays without delay")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print JSON lines even on a terminal")
	_ = replayCmd.MarkFlagRequired("input")
}
