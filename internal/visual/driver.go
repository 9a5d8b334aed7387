// Package visual drives the probe rod animation from session state.
//
// The driver owns two independent continuous effects, the insertion/retraction
// position transition and the breathing pulse, plus the status colour mapping
// and mycelium overlay visibility. It is advanced one frame at a time by Tick
// and never writes back into the controller.
package visual

import (
	"math"
	"sync"
	"time"

	"soilpulse-sim/internal/soil"
)

// Rod resting offsets and transition constants.
const (
	InsertedOffset  = -1.5
	RetractedOffset = 2.0
	LerpFactor      = 0.05
	SnapEpsilon     = 0.001

	overlayOpacity = 0.8
	lightScale     = 2.0
	glowScale      = 1.5
)

// Colors maps every status to its glow/overlay colour.
var Colors = map[soil.Status]string{
	soil.StatusIdle:       "#52525b",
	soil.StatusScanning:   "#22d3ee",
	soil.StatusUnsafe:     "#ef4444",
	soil.StatusRecovering: "#fbbf24",
	soil.StatusReady:      "#34d399",
}

// ColorFor returns the colour for status, falling back to the idle colour.
func ColorFor(status soil.Status) string {
	if c, ok := Colors[status]; ok {
		return c
	}
	return Colors[soil.StatusIdle]
}

// OverlayVisible reports whether the mycelium network is shown.
func OverlayVisible(status soil.Status, inserted bool) bool {
	return inserted && status != soil.StatusIdle
}

// Breath returns the pulse factor for time t (seconds), in [0.5, 1.5].
func Breath(t float64) float64 {
	return (math.Sin(2*t)+1)*0.5 + 0.5
}

// Frame is the visual state produced by one tick.
type Frame struct {
	Status         soil.Status `json:"status"`
	Inserted       bool        `json:"inserted"`
	Offset         float64     `json:"offset"`
	Target         float64     `json:"target"`
	Moving         bool        `json:"moving"`
	Breath         float64     `json:"breath"`
	GlowIntensity  float64     `json:"glow_intensity"`
	LightIntensity float64     `json:"light_intensity"`
	Color          string      `json:"color"`
	OverlayVisible bool        `json:"overlay_visible"`
	OverlayOpacity float64     `json:"overlay_opacity"`
	Elapsed        float64     `json:"elapsed"`
}

// Driver holds the animation state. It is safe for concurrent use so state
// pushes and frame ticks may come from different goroutines.
type Driver struct {
	mu       sync.Mutex
	status   soil.Status
	inserted bool
	offset   float64
	target   float64
	moving   bool
	elapsed  float64
	closed   bool
}

// NewDriver returns a driver showing a retracted, idle rod.
func NewDriver() *Driver {
	return &Driver{
		status: soil.StatusIdle,
		offset: RetractedOffset,
		target: RetractedOffset,
	}
}

// Apply pushes the latest session status. Colour and overlay change at once;
// the position starts moving toward the matching resting offset.
func (d *Driver) Apply(status soil.Status, inserted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.status = status
	d.inserted = inserted
	target := RetractedOffset
	if inserted {
		target = InsertedOffset
	}
	if target != d.target || d.offset != target {
		d.target = target
		d.moving = d.offset != target
	}
}

// Tick advances one frame. dt advances the pulse clock; the position decays
// toward its target by LerpFactor per tick regardless of dt.
func (d *Driver) Tick(dt time.Duration) Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return d.frameLocked()
	}
	if dt > 0 {
		d.elapsed += dt.Seconds()
	}
	if d.moving {
		d.offset += (d.target - d.offset) * LerpFactor
		if math.Abs(d.offset-d.target) <= SnapEpsilon {
			d.offset = d.target
			d.moving = false
		}
	}
	return d.frameLocked()
}

// Frame returns the current frame without advancing.
func (d *Driver) Frame() Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frameLocked()
}

// Close stops the driver; later Apply and Tick calls change nothing.
func (d *Driver) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

func (d *Driver) frameLocked() Frame {
	breath := Breath(d.elapsed)
	visible := OverlayVisible(d.status, d.inserted)
	opacity := 0.0
	if visible {
		opacity = overlayOpacity
	}
	return Frame{
		Status:         d.status,
		Inserted:       d.inserted,
		Offset:         d.offset,
		Target:         d.target,
		Moving:         d.moving,
		Breath:         breath,
		GlowIntensity:  glowScale * breath,
		LightIntensity: lightScale * breath,
		Color:          ColorFor(d.status),
		OverlayVisible: visible,
		OverlayOpacity: opacity,
		Elapsed:        d.elapsed,
	}
}
