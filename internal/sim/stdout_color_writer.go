// ColorStdoutWriter prints human-friendly, colorized scan results to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"soilpulse-sim/internal/config"
	"soilpulse-sim/internal/soil"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

var statusPalette = map[soil.Status]string{
	soil.StatusIdle:       colorGray,
	soil.StatusScanning:   colorCyan,
	soil.StatusUnsafe:     colorRed,
	soil.StatusRecovering: colorYellow,
	soil.StatusReady:      colorGreen,
}

func statusColor(s soil.Status) string {
	if c, ok := statusPalette[s]; ok {
		return c
	}
	return colorGray
}

// ColorStdoutWriter prints scan records using ANSI colors.
type ColorStdoutWriter struct {
	cfg  *config.Narration
	out  io.Writer
	mu   sync.Mutex
	once sync.Once
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
// cfg, when set, is summarised once before the first record.
func NewColorStdoutWriter(cfg *config.Narration) *ColorStdoutWriter {
	return &ColorStdoutWriter{cfg: cfg, out: os.Stdout}
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}
	fmt.Fprintln(w.out, "Narration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Provider:\t%s\n", w.cfg.Provider)
	if w.cfg.Provider == config.ProviderGemini {
		fmt.Fprintf(tw, "Model:\t%s\n", w.cfg.Model)
		fmt.Fprintf(tw, "Max Output Tokens:\t%d\n", w.cfg.MaxOutputTokens)
	}
	fmt.Fprintf(tw, "Timeout:\t%s\n", w.cfg.Timeout)
	tw.Flush()
	fmt.Fprintln(w.out)
}

// WriteResult outputs a single scan record in colorized format.
func (w *ColorStdoutWriter) WriteResult(rec ScanRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.once.Do(w.printOverview)

	sc := statusColor(rec.Status)
	r := rec.Reading
	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, rec.ResolvedAt.Format(time.RFC3339), colorReset)
	fmt.Fprintf(w.out, "%sscan=%s%s ", colorBlue, shortID(rec.ScanID), colorReset)
	fmt.Fprintf(w.out, "%sstatus=%s%s ", sc, rec.Status, colorReset)
	fmt.Fprintf(w.out, "%srad=%.0f%s ", colorRed, r.RadiationLevel, colorReset)
	fmt.Fprintf(w.out, "%smyc=%.0f%%%s ", colorMagenta, r.MyceliumDensity, colorReset)
	fmt.Fprintf(w.out, "%sint=%.0f%s ", colorYellow, r.SoilStructure, colorReset)
	fmt.Fprintf(w.out, "%swater=%.0f%%%s", colorCyan, r.WaterRetention, colorReset)
	fmt.Fprintln(w.out)
	if rec.Narration != "" {
		fmt.Fprintf(w.out, "  %s>%s %s\n", sc, colorReset, rec.Narration)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
