// Package narration produces short human-readable reports for scan results.
//
// Providers never fail past this boundary: every failure is converted into
// one of the fallback strings below, so callers always receive usable text.
package narration

import (
	"context"
	"errors"
	"log/slog"

	"soilpulse-sim/internal/config"
	"soilpulse-sim/internal/soil"
)

// Fallback texts shown in place of a generated report.
const (
	OfflineMessage = "AI Interface Offline: API Key missing. Showing raw sensor data only."
	FailedMessage  = "Connection to Fallout Harvest Network failed. Local diagnostics only."
	EmptyMessage   = "Analysis data corrupted."
)

// ErrUnavailable marks a provider that could not produce a report.
var ErrUnavailable = errors.New("narration unavailable")

// Provider narrates a scan result.
type Provider interface {
	Narrate(ctx context.Context, status soil.Status, reading soil.Reading) string
}

// Immediate is implemented by providers that can answer without blocking.
// When ok is true the text is final and no asynchronous call is needed.
type Immediate interface {
	Immediate(status soil.Status, reading soil.Reading) (text string, ok bool)
}

// Offline always reports that no credential is configured.
type Offline struct{}

// Narrate implements Provider.
func (Offline) Narrate(context.Context, soil.Status, soil.Reading) string { return OfflineMessage }

// Immediate implements Immediate.
func (Offline) Immediate(soil.Status, soil.Reading) (string, bool) { return OfflineMessage, true }

// New builds the provider selected by cfg. Missing credentials or a missing
// claude binary select Offline without any network or process access.
func New(cfg config.Narration, log *slog.Logger) Provider {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Provider {
	case config.ProviderGemini:
		key := cfg.APIKey()
		if key == "" {
			log.Info("narration offline", "reason", "api key missing", "env", cfg.APIKeyEnv)
			return Offline{}
		}
		return NewGemini(cfg, key, nil, log)
	case config.ProviderClaudeCLI:
		c, err := NewClaudeCLI(log)
		if err != nil {
			log.Info("narration offline", "reason", err)
			return Offline{}
		}
		return c
	}
	return Offline{}
}
