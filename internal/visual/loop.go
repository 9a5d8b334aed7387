package visual

import (
	"context"
	"time"

	"soilpulse-sim/internal/logging"
)

// Run ticks d every interval until ctx is done. Each frame is handed to sink
// when sink is non-nil. The driver is closed on return so late state pushes
// are dropped.
func Run(ctx context.Context, interval time.Duration, d *Driver, sink func(Frame)) {
	log := logging.FromContext(ctx)
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	log.Debug("starting visual loop", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer d.Close()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			f := d.Tick(now.Sub(last))
			last = now
			if sink != nil {
				sink(f)
			}
		case <-ctx.Done():
			log.Debug("stopping visual loop")
			return
		}
	}
}
