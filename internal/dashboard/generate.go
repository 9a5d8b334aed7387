package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"soilpulse-sim/internal/config"
)

//go:embed templates/*.tmpl
var templates embed.FS

// DatasourceEnv names the variable holding the Grafana datasource UID of the
// GreptimeDB instance the scan records are exported to.
const DatasourceEnv = "GREPTIMEDB_DATASOURCE_UID"

var templateFiles = []string{
	"soilpulse-dashboard.json.tmpl",
}

type templateData struct {
	Database string
	Table    string
}

// Render writes the dashboards for the configured export table to outDir
// and returns the written paths.
func Render(outDir string, cfg config.Greptime) ([]string, error) {
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
	}
	data := templateData{Database: cfg.Database, Table: cfg.Table}
	if data.Database == "" {
		data.Database = "public"
	}
	if data.Table == "" {
		data.Table = "soil_scans"
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, name := range templateFiles {
		t, err := template.New(name).Funcs(funcMap).ParseFS(templates, "templates/"+name)
		if err != nil {
			return written, err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(name, ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return written, err
		}
		if err := t.Execute(f, data); err != nil {
			f.Close()
			return written, err
		}
		if err := f.Close(); err != nil {
			return written, err
		}
		written = append(written, outPath)
	}
	return written, nil
}
