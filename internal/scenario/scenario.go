// Package scenario runs scripted probe sessions against a controller.
package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"soilpulse-sim/internal/logging"
	"soilpulse-sim/internal/soil"
)

// Step actions.
const (
	ActionInsert   = "insert"
	ActionRescan   = "rescan"
	ActionSimulate = "simulate"
	ActionReset    = "reset"
	ActionWait     = "wait"
	ActionAwait    = "await"
)

// DefaultAwaitTimeout bounds an await step without an explicit duration.
const DefaultAwaitTimeout = 30 * time.Second

// Scenario is an ordered script of probe operations.
type Scenario struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Step is one scripted operation. Target applies to the scan actions and
// defaults to RECOVERING for insert. Duration is the pause for wait and the
// timeout for await.
type Step struct {
	Action   string        `yaml:"action"`
	Target   string        `yaml:"target,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`
}

// Controller is the subset of the session controller a scenario drives.
type Controller interface {
	Snapshot() soil.Session
	InsertAndScan(target soil.Status) error
	Rescan(target soil.Status) error
	Simulate(target soil.Status) error
	Reset()
	Subscribe(fn func(soil.Session)) (cancel func())
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a YAML scenario.
func Parse(b []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every step before anything runs.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	for i, st := range s.Steps {
		switch st.Action {
		case ActionInsert:
			if st.Target == "" {
				continue
			}
			fallthrough
		case ActionRescan, ActionSimulate:
			if _, err := soil.ParseTarget(st.Target); err != nil {
				return fmt.Errorf("step %d (%s): %w", i+1, st.Action, err)
			}
		case ActionReset:
		case ActionWait:
			if st.Duration <= 0 {
				return fmt.Errorf("step %d (wait): duration must be positive", i+1)
			}
		case ActionAwait:
			if st.Duration < 0 {
				return fmt.Errorf("step %d (await): negative timeout", i+1)
			}
		default:
			return fmt.Errorf("step %d: unknown action %q", i+1, st.Action)
		}
	}
	return nil
}

// Run executes the steps in order and stops at the first rejected
// operation. The returned sessions are the snapshots observed at each await.
func Run(ctx context.Context, s *Scenario, ctl Controller) ([]soil.Session, error) {
	log := logging.FromContext(ctx)
	var results []soil.Session
	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		log.Debug("scenario step", "scenario", s.Name, "step", i+1, "action", st.Action, "target", st.Target)
		switch st.Action {
		case ActionInsert, ActionRescan, ActionSimulate:
			if err := scan(ctl, st); err != nil {
				return results, fmt.Errorf("step %d (%s): %w", i+1, st.Action, err)
			}
		case ActionReset:
			ctl.Reset()
		case ActionWait:
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(st.Duration):
			}
		case ActionAwait:
			sess, err := Await(ctx, ctl, st.Duration)
			if err != nil {
				return results, fmt.Errorf("step %d (await): %w", i+1, err)
			}
			logResult(log, sess)
			results = append(results, sess)
		default:
			return results, fmt.Errorf("step %d: unknown action %q", i+1, st.Action)
		}
	}
	return results, nil
}

func scan(ctl Controller, st Step) error {
	target := soil.StatusRecovering
	if st.Target != "" {
		t, err := soil.ParseTarget(st.Target)
		if err != nil {
			return err
		}
		target = t
	}
	switch st.Action {
	case ActionInsert:
		return ctl.InsertAndScan(target)
	case ActionRescan:
		return ctl.Rescan(target)
	}
	return ctl.Simulate(target)
}

// Await blocks until the session holds a narrated result, the probe is
// retracted, or timeout elapses. A zero timeout uses DefaultAwaitTimeout.
func Await(ctx context.Context, ctl Controller, timeout time.Duration) (soil.Session, error) {
	if timeout == 0 {
		timeout = DefaultAwaitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	updates := make(chan soil.Session, 1)
	stop := ctl.Subscribe(func(s soil.Session) {
		// Keep only the newest snapshot.
		select {
		case <-updates:
		default:
		}
		updates <- s
	})
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctl.Snapshot(), fmt.Errorf("waiting for result: %w", ctx.Err())
		case s := <-updates:
			if settled(s) {
				return s, nil
			}
		}
	}
}

func settled(s soil.Session) bool {
	if !s.Inserted {
		return true
	}
	return s.Status.IsTerminal() && s.Result != nil && s.Result.Narrated
}

func logResult(log *slog.Logger, s soil.Session) {
	if s.Result == nil {
		log.Info("scenario await", "status", s.Status, "inserted", s.Inserted)
		return
	}
	log.Info("scenario await",
		"status", s.Status,
		"radiation", s.Result.Data.RadiationLevel,
		"mycelium", s.Result.Data.MyceliumDensity,
		"narration", s.Result.Narration)
}
