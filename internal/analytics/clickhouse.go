package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Warehouse stores decision records in ClickHouse for offline analysis
// of protocol performance and realized routing quality.
type Warehouse struct {
	conn  driver.Conn
	table string
}

type WarehouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

func NewWarehouse(cfg WarehouseConfig) (*Warehouse, error) {
	if cfg.Table == "" {
		cfg.Table = "route_decisions"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	w := &Warehouse{conn: conn, table: cfg.Table}
	if err := w.ensureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	return w, nil
}

func (w *Warehouse) ensureSchema(ctx context.Context) error {
	return w.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			request_id String,
			plan_id String,
			source_token String,
			source_chain UInt64,
			target_token String,
			target_chain UInt64,
			amount_in String,
			amount_out String,
			rate String,
			score Float64,
			output_comp Float64,
			gas_comp Float64,
			reliability_comp Float64,
			hop_count UInt8,
			path String,
			candidates UInt16,
			alternatives String,
			failure String,
			failures String,
			elapsed_ms Int64,
			created_at DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (source_token, target_token, created_at)
	`, w.table))
}

func (w *Warehouse) Name() string { return "clickhouse" }

func (w *Warehouse) Publish(ctx context.Context, rec Record) error {
	failures := ""
	if len(rec.Failures) > 0 {
		if b, err := json.Marshal(rec.Failures); err == nil {
			failures = string(b)
		}
	}
	alternatives := ""
	if len(rec.Alternatives) > 0 {
		if b, err := json.Marshal(rec.Alternatives); err == nil {
			alternatives = string(b)
		}
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (
			request_id, plan_id, source_token, source_chain, target_token, target_chain,
			amount_in, amount_out, rate, score, output_comp, gas_comp, reliability_comp,
			hop_count, path, candidates, alternatives, failure, failures, elapsed_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.table)

	return w.conn.AsyncInsert(ctx, query, false,
		rec.RequestID,
		rec.PlanID,
		rec.SourceToken,
		rec.SourceChain,
		rec.TargetToken,
		rec.TargetChain,
		rec.AmountIn,
		rec.AmountOut,
		rec.Rate,
		rec.Score,
		rec.OutputComp,
		rec.GasComp,
		rec.ReliabilityComp,
		uint8(len(rec.Hops)),
		rec.Path,
		uint16(rec.Candidates),
		alternatives,
		rec.Failure,
		failures,
		rec.ElapsedMs,
		rec.CreatedAt,
	)
}

func (w *Warehouse) Close() error { return w.conn.Close() }
