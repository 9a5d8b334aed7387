package sim

import (
	"time"

	"soilpulse-sim/internal/soil"
)

// ScanRecord is the exported form of one narrated scan result.
type ScanRecord struct {
	SessionID  string       `json:"session_id"`
	ScanID     string       `json:"scan_id"`
	Epoch      uint64       `json:"epoch"`
	Status     soil.Status  `json:"status"`
	Reading    soil.Reading `json:"reading"`
	Narration  string       `json:"narration"`
	StartedAt  time.Time    `json:"started_at"`
	ResolvedAt time.Time    `json:"resolved_at"`
}

// ResultWriter is an interface to support different result sinks.
type ResultWriter interface {
	WriteResult(ScanRecord) error
}

// Optional: writers holding resources can be closed.
type closer interface {
	Close() error
}
