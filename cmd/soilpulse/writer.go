package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"soilpulse-sim/internal/config"
	"soilpulse-sim/internal/sim"
)

var isTerminal = func(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }

// stdoutWriter picks colored output on a terminal and JSON lines otherwise.
func stdoutWriter(cfg *config.Config, forceJSON bool) sim.ResultWriter {
	if forceJSON || !isTerminal(os.Stdout) {
		return sim.NewJSONStdoutWriter()
	}
	return sim.NewColorStdoutWriter(&cfg.Narration)
}

// newWriters adds the configured exports to base. The cleanup function
// closes every writer holding resources, base included.
func newWriters(cfg *config.Config, base sim.ResultWriter, log *slog.Logger) (sim.ResultWriter, func(), error) {
	ws := []sim.ResultWriter{base}
	if cfg.Export.LogFile != "" {
		fw, err := sim.NewFileWriter(cfg.Export.LogFile)
		if err != nil {
			return nil, nil, err
		}
		ws = append(ws, fw)
	}
	if cfg.Export.Greptime.Endpoint != "" {
		gw, err := sim.NewGreptimeDBWriter(cfg.Export.Greptime, log)
		if err != nil {
			for _, w := range ws[1:] {
				if c, ok := w.(io.Closer); ok {
					_ = c.Close()
				}
			}
			return nil, nil, err
		}
		log.Info("exporting scan records", "endpoint", cfg.Export.Greptime.Endpoint, "table", cfg.Export.Greptime.Table)
		ws = append(ws, gw)
	}
	mw := sim.NewMultiWriter(ws...)
	return mw, func() {
		if err := mw.Close(); err != nil {
			log.Warn("closing writers", "error", err)
		}
	}, nil
}
