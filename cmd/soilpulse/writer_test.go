package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"soilpulse-sim/internal/config"
	"soilpulse-sim/internal/logging"
	"soilpulse-sim/internal/sim"
	"soilpulse-sim/internal/soil"
)

type countingWriter struct{ n int }

func (c *countingWriter) WriteResult(sim.ScanRecord) error { c.n++; return nil }

func withTerminal(t *testing.T, tty bool) {
	t.Helper()
	prev := isTerminal
	isTerminal = func(*os.File) bool { return tty }
	t.Cleanup(func() { isTerminal = prev })
}

func TestStdoutWriterSelection(t *testing.T) {
	cfg := config.Default()

	withTerminal(t, false)
	if _, ok := stdoutWriter(cfg, false).(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected JSON writer when stdout is not a terminal")
	}

	withTerminal(t, true)
	if _, ok := stdoutWriter(cfg, false).(*sim.ColorStdoutWriter); !ok {
		t.Fatalf("expected color writer on a terminal")
	}
	if _, ok := stdoutWriter(cfg, true).(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("--json should force the JSON writer")
	}
}

func TestNewWritersBaseOnly(t *testing.T) {
	base := &countingWriter{}
	w, cleanup, err := newWriters(config.Default(), base, logging.Discard())
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	defer cleanup()
	if err := w.WriteResult(sim.ScanRecord{Status: soil.StatusReady}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if base.n != 1 {
		t.Fatalf("base writer not reached")
	}
}

func TestNewWritersLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Export.LogFile = filepath.Join(t.TempDir(), "scans.jsonl")
	base := &countingWriter{}
	w, cleanup, err := newWriters(cfg, base, logging.Discard())
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	rec := sim.ScanRecord{ScanID: "s1", Status: soil.StatusUnsafe, ResolvedAt: time.Now()}
	if err := w.WriteResult(rec); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cleanup()

	b, err := os.ReadFile(cfg.Export.LogFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"scan_id":"s1"`) || base.n != 1 {
		t.Fatalf("record not fanned out: %s", b)
	}
}

func TestNewWritersBadGreptimeEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.Export.Greptime.Endpoint = "localhost:port"
	if _, _, err := newWriters(cfg, &countingWriter{}, logging.Discard()); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

func TestLoadConfigMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SOILPULSE_ADMIN_ADDR", "127.0.0.1:9999")
	logLevel = "debug"
	t.Cleanup(func() { logLevel = "" })

	cfg, err := loadConfig(scanCmd)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Admin.Addr != "127.0.0.1:9999" || cfg.LogLevel != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}
