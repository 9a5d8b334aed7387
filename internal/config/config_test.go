package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soilpulse.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
session:
  frame_interval: 50ms
narration:
  provider: claude-cli
  timeout: 2.5s
admin:
  enabled: false
`)
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %s", cfg.LogLevel)
	}
	if cfg.Session.FrameInterval != 50*time.Millisecond {
		t.Errorf("frame interval = %s", cfg.Session.FrameInterval)
	}
	if cfg.Narration.Provider != ProviderClaudeCLI || cfg.Narration.Timeout != 2500*time.Millisecond {
		t.Errorf("unexpected narration config: %+v", cfg.Narration)
	}
	if cfg.Narration.Model != "gemini-2.5-flash" {
		t.Errorf("expected default model to survive, got %q", cfg.Narration.Model)
	}
	if cfg.Admin.Enabled {
		t.Errorf("admin should be disabled")
	}
}

func TestLoadConfig_SchemaRejects(t *testing.T) {
	cases := map[string]string{
		"provider": "narration:\n  provider: carrier-pigeon\n",
		"unknown":  "telemetry: true\n",
		"duration": "session:\n  frame_interval: soon\n",
		"tokens":   "narration:\n  max_output_tokens: 0\n",
	}
	for name, body := range cases {
		path := writeConfig(t, body)
		if _, err := Load(path, ""); err == nil {
			t.Errorf("%s: expected validation error", name)
		} else if !strings.Contains(err.Error(), "validation failed") {
			t.Errorf("%s: unexpected error %v", name, err)
		}
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	cfg, err := LoadOrDefault(missing, "", true)
	if err != nil {
		t.Fatalf("expected defaults, got %v", err)
	}
	if cfg.Narration.MaxOutputTokens != 150 {
		t.Errorf("unexpected defaults: %+v", cfg.Narration)
	}
	if _, err := LoadOrDefault(missing, "", false); err == nil {
		t.Errorf("expected error when file is required")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "greptime:4001")
	t.Setenv("GREPTIMEDB_TABLE", "probe_scans")
	t.Setenv("SOILPULSE_ADMIN_ADDR", ":9999")
	cfg := Default()
	cfg.ApplyEnv()
	if cfg.Export.Greptime.Endpoint != "greptime:4001" || cfg.Export.Greptime.Table != "probe_scans" {
		t.Errorf("greptime env not applied: %+v", cfg.Export.Greptime)
	}
	if cfg.Admin.Addr != ":9999" {
		t.Errorf("admin addr = %s", cfg.Admin.Addr)
	}
}

func TestNarrationAPIKey(t *testing.T) {
	t.Setenv("SOILPULSE_TEST_KEY", "secret")
	n := Narration{APIKeyEnv: "SOILPULSE_TEST_KEY"}
	if n.APIKey() != "secret" {
		t.Errorf("APIKey() = %q", n.APIKey())
	}
	if (Narration{}).APIKey() != "" {
		t.Errorf("expected empty key without env name")
	}
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", DefaultPath), "")
	if err != nil {
		t.Fatalf("load shipped config: %v", err)
	}
	def := Default()
	if cfg.Narration != def.Narration || cfg.Session != def.Session || cfg.Admin != def.Admin {
		t.Fatalf("shipped config drifted from defaults:\n%+v\n%+v", cfg, def)
	}
}
