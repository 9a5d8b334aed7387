// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "config/soilpulse.yaml"

// Narration provider names.
const (
	ProviderOffline   = "offline"
	ProviderGemini    = "gemini"
	ProviderClaudeCLI = "claude-cli"
)

// Session controls the interactive session loop.
type Session struct {
	FrameInterval time.Duration `yaml:"frame_interval"`
}

// Narration configures the text-generation collaborator.
type Narration struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	Endpoint        string        `yaml:"endpoint"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	RatePerSecond   float64       `yaml:"rate_per_second"`
	Burst           int           `yaml:"burst"`
}

// APIKey resolves the credential from the configured environment variable.
func (n Narration) APIKey() string {
	if n.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(n.APIKeyEnv)
}

// Admin configures the local HTTP control surface.
type Admin struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Greptime configures the optional scan record export.
type Greptime struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// Export configures where final scan records are written.
type Export struct {
	LogFile  string   `yaml:"log_file"`
	Greptime Greptime `yaml:"greptime"`
}

// Config is the root configuration.
type Config struct {
	LogLevel  string    `yaml:"log_level"`
	Session   Session   `yaml:"session"`
	Narration Narration `yaml:"narration"`
	Admin     Admin     `yaml:"admin"`
	Export    Export    `yaml:"export"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Session:  Session{FrameInterval: 33 * time.Millisecond},
		Narration: Narration{
			Provider:        ProviderGemini,
			Model:           "gemini-2.5-flash",
			Endpoint:        "https://generativelanguage.googleapis.com",
			APIKeyEnv:       "API_KEY",
			MaxOutputTokens: 150,
			Timeout:         15 * time.Second,
			RatePerSecond:   1,
			Burst:           2,
		},
		Admin: Admin{Enabled: true, Addr: "127.0.0.1:8080"},
		Export: Export{
			Greptime: Greptime{Database: "public", Table: "soil_scans"},
		},
	}
}

// Load validates the YAML file at configPath against the CUE schema and
// decodes it on top of Default. An empty cueSchemaPath uses the embedded schema.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns Default when configPath does
// not exist and optional is set.
func LoadOrDefault(configPath, cueSchemaPath string, optional bool) (*Config, error) {
	cfg, err := Load(configPath, cueSchemaPath)
	if err != nil && optional && errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv overrides export and admin settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		c.Export.Greptime.Endpoint = v
	}
	if v := os.Getenv("GREPTIMEDB_TABLE"); v != "" {
		c.Export.Greptime.Table = v
	}
	if v := os.Getenv("SOILPULSE_ADMIN_ADDR"); v != "" {
		c.Admin.Addr = v
	}
}
