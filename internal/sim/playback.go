package sim

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"
)

// ReplayLog replays scan records from r to writer, spacing them by their
// resolution timestamps. A speed >0 accelerates playback. If speed <= 0, no
// artificial delay is inserted.
func ReplayLog(ctx context.Context, r io.Reader, writer ResultWriter, speed float64) (int, error) {
	dec := json.NewDecoder(r)
	var prev time.Time
	n := 0
	for {
		var rec ScanRecord
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return n, nil
			}
			return n, err
		}
		if !prev.IsZero() && speed > 0 {
			diff := rec.ResolvedAt.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				select {
				case <-time.After(diff):
				case <-ctx.Done():
					return n, ctx.Err()
				}
			}
		}
		if err := writer.WriteResult(rec); err != nil {
			return n, err
		}
		n++
		prev = rec.ResolvedAt
	}
}

// ReplayLogFile opens a JSONL scan log and replays its records.
func ReplayLogFile(ctx context.Context, path string, writer ResultWriter, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}
