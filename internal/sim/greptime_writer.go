package sim

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"soilpulse-sim/internal/config"
	"soilpulse-sim/internal/logging"
)

const (
	defaultGreptimePort = 4001
	greptimeTimeout     = 5 * time.Second
)

// greptimeClient abstracts the ingester client for testing.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes scan records to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client greptimeClient
	table  string
	log    *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port").
func NewGreptimeDBWriter(cfg config.Greptime, log *slog.Logger) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	gcfg := greptime.NewConfig(host).WithPort(port).WithDatabase(cfg.Database)
	client, err := greptime.NewClient(gcfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	if log == nil {
		log = logging.Discard()
	}
	tbl := cfg.Table
	if tbl == "" {
		tbl = "soil_scans"
	}
	return &GreptimeDBWriter{client: client, table: tbl, log: log}, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	if endpoint == "" {
		return "", 0, fmt.Errorf("greptime endpoint is empty")
	}
	host, p, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("greptime endpoint port %q: %w", p, err)
	}
	return host, port, nil
}

// WriteResult inserts a single scan record.
func (w *GreptimeDBWriter) WriteResult(rec ScanRecord) error {
	tbl, err := table.New(w.table)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("session_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("status", types.STRING); err != nil {
		return err
	}
	for _, col := range []string{"scan_id", "narration"} {
		if err := tbl.AddFieldColumn(col, types.STRING); err != nil {
			return err
		}
	}
	for _, col := range []string{"radiation_level", "mycelium_density", "soil_structure", "water_retention", "duration_ms"} {
		if err := tbl.AddFieldColumn(col, types.FLOAT64); err != nil {
			return err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	r := rec.Reading
	dur := float64(rec.ResolvedAt.Sub(rec.StartedAt).Milliseconds())
	if err := tbl.AddRow(
		rec.SessionID, string(rec.Status),
		rec.ScanID, rec.Narration,
		r.RadiationLevel, r.MyceliumDensity, r.SoilStructure, r.WaterRetention, dur,
		rec.ResolvedAt,
	); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), greptimeTimeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		w.log.Error("greptime write failed", "table", w.table, "error", err)
		return err
	}
	w.log.Debug("greptime wrote scan", "table", w.table, "scan_id", rec.ScanID)
	return nil
}
