package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"soilpulse-sim/internal/admin"
	"soilpulse-sim/internal/config"
	"soilpulse-sim/internal/logging"
	"soilpulse-sim/internal/narration"
	"soilpulse-sim/internal/sim"
)

var (
	runLogFile  string
	runAdmin    string
	runNoAdmin  bool
	runHeadless bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive probe session",
	Long: "run starts a probe session. On a terminal it shows the dashboard; otherwise it runs " +
		"headless and is driven through the admin HTTP surface.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if runAdmin != "" {
			cfg.Admin.Addr = runAdmin
		}
		if runNoAdmin {
			cfg.Admin.Enabled = false
		}
		interactive := !runHeadless && isTerminal(os.Stdout)
		if !interactive && !cfg.Admin.Enabled {
			return fmt.Errorf("headless run needs the admin surface; drop --no-admin or use the scan command")
		}

		log, closeLog, err := sessionLogger(cfg, interactive)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, log)

		var tui *sim.TUIWriter
		var base sim.ResultWriter
		if interactive {
			tui = sim.NewTUIWriter(cfg)
			base = tui
		} else {
			base = stdoutWriter(cfg, false)
		}
		writer, cleanup, err := newWriters(cfg, base, log)
		if err != nil {
			if tui != nil {
				_ = tui.Close()
			}
			return err
		}
		defer cleanup()

		ctl := sim.NewController(narration.New(cfg.Narration, log), sim.WithWriter(writer), sim.WithLogger(log))
		defer ctl.Close()

		var done <-chan struct{}
		if tui != nil {
			cancel := ctl.Subscribe(tui.Observe)
			defer cancel()
			tui.SetControls(sim.Controls{Simulate: ctl.Simulate, Reset: ctl.Reset})
			done = tui.Done()
		}

		if cfg.Admin.Enabled {
			srv := admin.NewServer(ctl, cfg.Session.FrameInterval, log)
			defer srv.Close()
			go func() {
				if err := srv.Start(ctx, cfg.Admin.Addr); err != nil {
					log.Error("admin server failed", "error", err)
					if tui != nil {
						tui.Log(fmt.Sprintf("admin server failed: %v", err))
						tui.SetAdminStatus("")
					}
				}
			}()
			if tui != nil {
				tui.SetAdminStatus(cfg.Admin.Addr)
			} else {
				log.Info("headless session ready", "admin", "http://"+cfg.Admin.Addr)
			}
		}

		select {
		case <-ctx.Done():
		case <-done:
		}
		log.Info("probe session stopped")
		return nil
	},
}

// sessionLogger keeps logs off the terminal while the dashboard owns it.
func sessionLogger(cfg *config.Config, interactive bool) (*slog.Logger, func(), error) {
	noop := func() {}
	if runLogFile != "" {
		f, err := os.OpenFile(runLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return logging.NewWithLevel(f, cfg.LogLevel), func() { _ = f.Close() }, nil
	}
	if interactive {
		return logging.NewWithLevel(io.Discard, cfg.LogLevel), noop, nil
	}
	return logging.NewWithLevel(os.Stderr, cfg.LogLevel), noop, nil
}

func init() {
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "Write diagnostic logs to this file")
	runCmd.Flags().StringVar(&runAdmin, "admin", "", "Admin HTTP listen address (overrides config)")
	runCmd.Flags().BoolVar(&runNoAdmin, "no-admin", false, "Disable the admin HTTP surface")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Skip the dashboard even on a terminal")
}
