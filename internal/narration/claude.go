package narration

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"soilpulse-sim/internal/soil"
)

// runFunc executes a command and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ClaudeCLI narrates by shelling out to the claude CLI in print mode.
type ClaudeCLI struct {
	bin string
	run runFunc
	log *slog.Logger
}

// NewClaudeCLI locates the claude binary on PATH.
func NewClaudeCLI(log *slog.Logger) (*ClaudeCLI, error) {
	bin, err := exec.LookPath("claude")
	if err != nil {
		return nil, fmt.Errorf("%w: claude CLI not found", ErrUnavailable)
	}
	if log == nil {
		log = slog.Default()
	}
	return &ClaudeCLI{bin: bin, run: execRun, log: log}, nil
}

// Narrate implements Provider.
func (c *ClaudeCLI) Narrate(ctx context.Context, status soil.Status, reading soil.Reading) string {
	prompt := SystemPrompt(status) + "\n" + UserPrompt(reading) + "\nReturn only the report, no explanation."
	out, err := c.run(ctx, c.bin, "--print", "-p", prompt)
	if err != nil {
		c.log.Warn("claude narration failed", "status", status, "err", err, "output", strings.TrimSpace(string(out)))
		return FailedMessage
	}
	msg := strings.TrimSpace(string(out))
	if msg == "" {
		return EmptyMessage
	}
	return msg
}
