package dashboard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"soilpulse-sim/internal/config"
)

func TestRenderMissingEnv(t *testing.T) {
	t.Setenv(DatasourceEnv, "")
	if _, err := Render(t.TempDir(), config.Greptime{}); err == nil {
		t.Fatalf("expected error for missing env vars")
	}
}

func TestRenderSuccess(t *testing.T) {
	t.Setenv(DatasourceEnv, "uid1")

	dir := t.TempDir()
	paths, err := Render(dir, config.Greptime{Database: "field", Table: "plot_7"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != filepath.Join(dir, "soilpulse-dashboard.json") {
		t.Fatalf("unexpected paths %v", paths)
	}

	b, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read dashboard: %v", err)
	}
	if !json.Valid(b) {
		t.Fatalf("dashboard is not valid JSON:\n%s", b)
	}
	out := string(b)
	if !strings.Contains(out, `"uid": "uid1"`) {
		t.Fatalf("datasource uid not rendered")
	}
	if !strings.Contains(out, "FROM field.plot_7") {
		t.Fatalf("table not rendered")
	}
}

func TestRenderDefaultsTable(t *testing.T) {
	t.Setenv(DatasourceEnv, "uid1")
	paths, err := Render(t.TempDir(), config.Greptime{})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	b, _ := os.ReadFile(paths[0])
	if !strings.Contains(string(b), "FROM public.soil_scans") {
		t.Fatalf("default table not used")
	}
}
