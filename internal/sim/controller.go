// Package sim owns the probe session state machine and the sinks that
// present or export its results.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"soilpulse-sim/internal/logging"
	"soilpulse-sim/internal/narration"
	"soilpulse-sim/internal/soil"
)

// ScanDelay is the time between starting a scan and its resolution.
const ScanDelay = 2500 * time.Millisecond

// Controller owns the single probe session. All mutations go through its
// operations; consumers observe snapshots via Snapshot or Subscribe.
//
// Every scan start and every reset bumps the session epoch. Timer and
// narration completions carry the epoch they were started under and are
// dropped when it no longer matches, so nothing is ever cancelled for
// correctness.
type Controller struct {
	mu      sync.Mutex
	session soil.Session
	scan    pendingScan
	closed  bool

	// pubMu serialises delivery; it is never acquired while mu is held.
	pubMu   sync.Mutex
	subs    map[int]*subscriber
	nextSub int

	clock    Clock
	provider narration.Provider
	writer   ResultWriter
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type pendingScan struct {
	id      string
	target  soil.Status
	started time.Time
}

type subscriber struct {
	fn   func(soil.Session)
	last uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithWriter sets the sink receiving every narrated scan result.
func WithWriter(w ResultWriter) Option {
	return func(ctl *Controller) { ctl.writer = w }
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) {
		if l != nil {
			ctl.log = l
		}
	}
}

// NewController returns an idle, retracted session narrated by p.
// A nil provider behaves like narration.Offline.
func NewController(p narration.Provider, opts ...Option) *Controller {
	if p == nil {
		p = narration.Offline{}
	}
	c := &Controller{
		session:  soil.Session{ID: uuid.NewString(), Status: soil.StatusIdle},
		subs:     make(map[int]*subscriber),
		clock:    realClock{},
		provider: p,
		log:      logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Snapshot returns the current session.
func (c *Controller) Snapshot() soil.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// InsertAndScan inserts the retracted probe and starts a scan toward target.
func (c *Controller) InsertAndScan(target soil.Status) error {
	return c.startScan("insert", target, func(s soil.Session) bool {
		return !s.Inserted && s.Status == soil.StatusIdle
	})
}

// Rescan starts a new scan from a resolved status. It is rejected while a
// scan is already in flight.
func (c *Controller) Rescan(target soil.Status) error {
	return c.startScan("rescan", target, func(s soil.Session) bool {
		return s.Inserted && s.Status.IsTerminal()
	})
}

// Simulate inserts and scans when the probe is retracted, otherwise rescans.
func (c *Controller) Simulate(target soil.Status) error {
	c.mu.Lock()
	inserted := c.session.Inserted
	c.mu.Unlock()
	if inserted {
		return c.Rescan(target)
	}
	return c.InsertAndScan(target)
}

// Reset retracts the probe and returns the session to idle. Any scan or
// narration still outstanding is invalidated.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.session.Inserted = false
	c.session.Status = soil.StatusIdle
	c.session.Result = nil
	c.session.Epoch++
	c.session.Version++
	c.scan = pendingScan{}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.log.Info("session reset", "epoch", snap.Epoch)
	c.publish(snap)
}

// Subscribe registers fn for session updates and immediately hands it the
// current snapshot. Snapshots arrive in increasing Version order; one that
// has been superseded before delivery is skipped. fn must not block and
// must not call back into the controller synchronously.
func (c *Controller) Subscribe(fn func(soil.Session)) (cancel func()) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	id := c.nextSub
	c.nextSub++
	snap := c.Snapshot()
	sub := &subscriber{fn: fn, last: snap.Version}
	if c.subs != nil {
		c.subs[id] = sub
	}
	fn(snap)
	return func() {
		c.pubMu.Lock()
		delete(c.subs, id)
		c.pubMu.Unlock()
	}
}

// Close tears the controller down. Later completions are dropped, pending
// narration requests are cancelled and subscribers are released.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.pubMu.Lock()
	c.subs = nil
	c.pubMu.Unlock()
	c.log.Debug("controller closed")
}

func (c *Controller) startScan(op string, target soil.Status, legal func(soil.Session) bool) error {
	if !target.IsTarget() {
		return fmt.Errorf("%s %q: %w", op, target, soil.ErrInvalidTarget)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !legal(c.session) {
		from := c.session.Status
		c.mu.Unlock()
		return fmt.Errorf("%s from %s: %w", op, from, ErrIllegalTransition)
	}
	c.session.Inserted = true
	c.session.Status = soil.StatusScanning
	c.session.Result = nil
	c.session.Epoch++
	c.session.Version++
	c.scan = pendingScan{id: uuid.NewString(), target: target, started: c.clock.Now()}
	epoch := c.session.Epoch
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.log.Info("scan started", "op", op, "target", target, "epoch", epoch)
	c.clock.AfterFunc(ScanDelay, func() { c.resolve(epoch) })
	c.publish(snap)
	return nil
}

// resolve runs when the scan timer for epoch fires.
func (c *Controller) resolve(epoch uint64) {
	c.mu.Lock()
	if c.closed || c.session.Epoch != epoch || c.session.Status != soil.StatusScanning {
		c.mu.Unlock()
		c.log.Debug("dropping stale scan timer", "epoch", epoch)
		return
	}
	target := c.scan.target
	reading, err := soil.ReadingFor(target)
	if err != nil {
		// Targets are validated when the scan starts.
		c.mu.Unlock()
		c.log.Error("resolve scan", "target", target, "error", err)
		return
	}
	result := &soil.AnalysisResult{Status: target, Data: reading}
	if imm, ok := c.provider.(narration.Immediate); ok {
		if text, ok := imm.Immediate(target, reading); ok {
			result.Narration = text
			result.Narrated = true
		}
	}
	c.session.Status = target
	c.session.Result = result
	c.session.Version++
	snap := c.snapshotLocked()
	var rec ScanRecord
	if result.Narrated {
		rec = c.recordLocked()
	}
	c.mu.Unlock()

	c.log.Info("scan resolved", "status", target, "epoch", epoch, "narrated", result.Narrated)
	// Records are exported before the narrated snapshot goes out, so an
	// observer waiting for it can rely on the sinks being up to date.
	if result.Narrated {
		c.write(rec)
		c.publish(snap)
		return
	}
	c.publish(snap)
	go c.narrate(epoch, target, reading)
}

func (c *Controller) narrate(epoch uint64, status soil.Status, reading soil.Reading) {
	text := c.provider.Narrate(c.ctx, status, reading)

	c.mu.Lock()
	if c.closed || c.session.Epoch != epoch || c.session.Result == nil {
		c.mu.Unlock()
		c.log.Debug("dropping stale narration", "epoch", epoch)
		return
	}
	res := *c.session.Result
	res.Narration = text
	res.Narrated = true
	c.session.Result = &res
	c.session.Version++
	snap := c.snapshotLocked()
	rec := c.recordLocked()
	c.mu.Unlock()

	c.write(rec)
	c.publish(snap)
}

func (c *Controller) publish(s soil.Session) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	for _, sub := range c.subs {
		if s.Version <= sub.last {
			continue
		}
		sub.last = s.Version
		sub.fn(s)
	}
}

func (c *Controller) snapshotLocked() soil.Session {
	s := c.session
	if s.Result != nil {
		r := *s.Result
		s.Result = &r
	}
	return s
}

func (c *Controller) recordLocked() ScanRecord {
	r := c.session.Result
	return ScanRecord{
		SessionID:  c.session.ID,
		ScanID:     c.scan.id,
		Epoch:      c.session.Epoch,
		Status:     r.Status,
		Reading:    r.Data,
		Narration:  r.Narration,
		StartedAt:  c.scan.started,
		ResolvedAt: c.clock.Now(),
	}
}

func (c *Controller) write(rec ScanRecord) {
	if c.writer == nil {
		return
	}
	if err := c.writer.WriteResult(rec); err != nil {
		c.log.Error("write scan record", "scan_id", rec.ScanID, "error", err)
	}
}
