package scenario

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"soilpulse-sim/internal/soil"
)

// fakeController resolves every scan on a goroutine right after it starts.
type fakeController struct {
	mu      sync.Mutex
	session soil.Session
	subs    map[int]func(soil.Session)
	next    int
	calls   []string
	hold    bool
}

func newFake() *fakeController {
	return &fakeController{session: soil.Session{Status: soil.StatusIdle}, subs: map[int]func(soil.Session){}}
}

func (f *fakeController) Snapshot() soil.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeController) InsertAndScan(t soil.Status) error {
	if f.Snapshot().Inserted {
		return errors.New("already inserted")
	}
	return f.start("insert", t)
}

func (f *fakeController) Rescan(t soil.Status) error {
	if !f.Snapshot().Inserted {
		return errors.New("not inserted")
	}
	return f.start("rescan", t)
}

func (f *fakeController) Simulate(t soil.Status) error { return f.start("simulate", t) }

func (f *fakeController) Reset() {
	f.mu.Lock()
	f.calls = append(f.calls, "reset")
	f.mu.Unlock()
	f.set(soil.Session{Status: soil.StatusIdle})
}

func (f *fakeController) Subscribe(fn func(soil.Session)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	fn(f.session)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeController) start(op string, t soil.Status) error {
	f.mu.Lock()
	f.calls = append(f.calls, op+" "+string(t))
	hold := f.hold
	f.mu.Unlock()
	f.set(soil.Session{Inserted: true, Status: soil.StatusScanning})
	if hold {
		return nil
	}
	go func() {
		r, _ := soil.ReadingFor(t)
		f.set(soil.Session{Inserted: true, Status: t, Result: &soil.AnalysisResult{Status: t, Data: r}})
		f.set(soil.Session{Inserted: true, Status: t, Result: &soil.AnalysisResult{Status: t, Data: r, Narration: "ok", Narrated: true}})
	}()
	return nil
}

func (f *fakeController) set(s soil.Session) {
	f.mu.Lock()
	s.Version = f.session.Version + 1
	f.session = s
	subs := make([]func(soil.Session), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	// Delivery stays under the lock so subscribers see versions in order.
	for _, fn := range subs {
		fn(s)
	}
	f.mu.Unlock()
}

func (f *fakeController) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestLoadScenario(t *testing.T) {
	sc, err := Load("testdata/simple.yaml")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if sc.Name != "example" || sc.Description != "basic test scenario" {
		t.Fatalf("unexpected header %q %q", sc.Name, sc.Description)
	}
	if len(sc.Steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(sc.Steps))
	}
	if sc.Steps[1].Duration != 5*time.Second || sc.Steps[3].Duration != 10*time.Millisecond {
		t.Fatalf("durations not decoded: %+v", sc.Steps)
	}
}

func TestParseRejectsBadSteps(t *testing.T) {
	cases := map[string]string{
		"empty":          "name: x\nsteps: []\n",
		"unknown action": "steps:\n  - action: dig\n",
		"bad target":     "steps:\n  - action: simulate\n    target: idle\n",
		"missing target": "steps:\n  - action: rescan\n",
		"wait no time":   "steps:\n  - action: wait\n",
		"not yaml":       "steps: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := Parse([]byte("steps:\n  - action: simulate\n    target: idle\n")); !errors.Is(err, soil.ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestRunFieldSweep(t *testing.T) {
	sc, err := Lookup("field-sweep")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	ctl := newFake()
	results, err := Run(context.Background(), sc, ctl)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []soil.Status{soil.StatusUnsafe, soil.StatusRecovering, soil.StatusReady}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, s := range results {
		if s.Status != want[i] || s.Result == nil || !s.Result.Narrated {
			t.Fatalf("result %d unexpected: %+v", i, s)
		}
	}
	got := strings.Join(ctl.history(), ",")
	if got != "insert UNSAFE,simulate RECOVERING,simulate READY,reset" {
		t.Fatalf("unexpected calls %s", got)
	}
	if ctl.Snapshot().Inserted {
		t.Fatalf("probe left inserted")
	}
}

func TestRunStopsOnRejectedStep(t *testing.T) {
	sc := &Scenario{Steps: []Step{{Action: ActionRescan, Target: "READY"}, {Action: ActionReset}}}
	ctl := newFake()
	_, err := Run(context.Background(), sc, ctl)
	if err == nil || !strings.Contains(err.Error(), "step 1 (rescan)") {
		t.Fatalf("expected step error, got %v", err)
	}
	if len(ctl.history()) != 0 {
		t.Fatalf("later steps ran: %v", ctl.history())
	}
}

func TestAwaitTimesOut(t *testing.T) {
	ctl := newFake()
	ctl.hold = true
	if err := ctl.InsertAndScan(soil.StatusReady); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s, err := Await(context.Background(), ctl, 20*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if s.Status != soil.StatusScanning {
		t.Fatalf("expected scanning snapshot, got %s", s.Status)
	}
}

func TestRunHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sc := &Scenario{Steps: []Step{{Action: ActionWait, Duration: time.Hour}}}
	if _, err := Run(ctx, sc, newFake()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestBuiltInScenariosValidate(t *testing.T) {
	for name, sc := range BuiltIn() {
		if sc.Description == "" {
			t.Errorf("%s missing description", name)
		}
		if err := sc.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestShippedScenarioParses(t *testing.T) {
	sc, err := Load("../../scenarios/field-sweep.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sc.Steps[0].Action != ActionInsert || sc.Steps[len(sc.Steps)-1].Action != ActionReset {
		t.Fatalf("unexpected steps %+v", sc.Steps)
	}
}
