// Package soil holds the probe domain types shared by the controller, narration and views.
package soil

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTarget is returned when a scan target is not one of the terminal statuses.
var ErrInvalidTarget = errors.New("invalid scan target")

// Status is the probe status. Exactly one is active at any time.
type Status string

// Probe statuses.
const (
	StatusIdle       Status = "IDLE"
	StatusScanning   Status = "SCANNING"
	StatusUnsafe     Status = "UNSAFE"
	StatusRecovering Status = "RECOVERING"
	StatusReady      Status = "READY"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusIdle, StatusScanning, StatusUnsafe, StatusRecovering, StatusReady}

// Targets lists the statuses a scan may resolve to.
var Targets = []Status{StatusUnsafe, StatusRecovering, StatusReady}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// ParseTarget parses a scan target name and rejects non-terminal statuses.
func ParseTarget(s string) (Status, error) {
	st, err := ParseStatus(s)
	if err != nil || !st.IsTarget() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}
	return st, nil
}

// IsTerminal reports whether s is a status a finished scan can be in.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusUnsafe, StatusRecovering, StatusReady:
		return true
	}
	return false
}

// IsTarget reports whether s is a valid scan target.
func (s Status) IsTarget() bool { return s.IsTerminal() }

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }

// Reading holds the four probe sensor values, each conventionally in [0,100].
type Reading struct {
	RadiationLevel  float64 `json:"radiation_level" yaml:"radiation_level"`
	MyceliumDensity float64 `json:"mycelium_density" yaml:"mycelium_density"`
	SoilStructure   float64 `json:"soil_structure" yaml:"soil_structure"`
	WaterRetention  float64 `json:"water_retention" yaml:"water_retention"`
}

// AnalysisResult is the outcome of one scan cycle.
// Narrated is false while the narration is still pending.
type AnalysisResult struct {
	Status    Status  `json:"status"`
	Data      Reading `json:"data"`
	Narration string  `json:"narration,omitempty"`
	Narrated  bool    `json:"narrated"`
}

// Session is a read-only snapshot of the probe session.
//
// Status is IDLE whenever Inserted is false, and Result is only set once a
// scan has resolved to a terminal status. Epoch identifies the scan (or reset)
// that produced the snapshot; Version increases on every published change.
type Session struct {
	ID       string          `json:"id"`
	Inserted bool            `json:"inserted"`
	Status   Status          `json:"status"`
	Result   *AnalysisResult `json:"result,omitempty"`
	Epoch    uint64          `json:"epoch"`
	Version  uint64          `json:"version"`
}

// Validate reports a snapshot whose fields contradict each other.
func (s Session) Validate() error {
	if !s.Inserted && s.Status != StatusIdle {
		return fmt.Errorf("status %s while probe retracted", s.Status)
	}
	if s.Result != nil && !s.Status.IsTerminal() {
		return fmt.Errorf("result present while %s", s.Status)
	}
	return nil
}
