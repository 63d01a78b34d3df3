// Package clickhouse exports every summarized epoch to ClickHouse. The table
// is write-only: the engine never reads its history back.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"Go2NetSonify/internal/config"
	"Go2NetSonify/internal/model"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS sonify_epochs (
    Timestamp DateTime,
    RunID     String,
    Epoch     Int64,
    Count     UInt64,
    Metric    String,
    Present   UInt8,
    Value     Float64,
    Threshold Float64,
    Min       Float64,
    Max       Float64,
    Scaled    Float64,
    Gate      Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunID, Metric, Epoch);
`

// Row is one metric of one epoch.
type Row struct {
	Timestamp time.Time
	RunID     string
	Epoch     int64
	Count     uint64
	Metric    string
	Present   uint8
	Value     float64
	Threshold float64
	Min       float64
	Max       float64
	Scaled    float64
	Gate      float64
}

// Rows flattens a result into one row per metric, in metric order.
func Rows(runID string, result *model.EpochResult) []Row {
	rows := make([]Row, 0, len(result.Names))
	ts := time.Unix(result.Epoch, 0).UTC()
	for i, name := range result.Names {
		value, ok := result.Metrics[name]
		var present uint8
		if ok {
			present = 1
		}
		r := result.Ranges[name]
		rows = append(rows, Row{
			Timestamp: ts,
			RunID:     runID,
			Epoch:     result.Epoch,
			Count:     result.Count,
			Metric:    name,
			Present:   present,
			Value:     value,
			Threshold: result.Thresholds[name],
			Min:       r.Min,
			Max:       r.Max,
			Scaled:    result.Scaling[i],
			Gate:      result.Gating[i],
		})
	}
	return rows
}

// Writer implements model.Sender for ClickHouse.
type Writer struct {
	conn  driver.Conn
	runID string
}

// New connects to ClickHouse and ensures the table exists.
func New(cfg config.ClickHouseConfig, runID string, logger *slog.Logger) (*Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	if logger != nil {
		logger.Info("connected to ClickHouse, table ensured", "component", "clickhouse", "host", cfg.Host)
	}
	return &Writer{conn: conn, runID: runID}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Name implements model.Sender.
func (w *Writer) Name() string {
	return "clickhouse"
}

// Send inserts one row per metric.
func (w *Writer) Send(ctx context.Context, result *model.EpochResult) error {
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO sonify_epochs")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, r := range Rows(w.runID, result) {
		err := batch.Append(r.Timestamp, r.RunID, r.Epoch, r.Count, r.Metric, r.Present,
			r.Value, r.Threshold, r.Min, r.Max, r.Scaled, r.Gate)
		if err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Close closes the connection.
func (w *Writer) Close() error {
	return w.conn.Close()
}
