package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketSweep/internal/domain/models"
	pkgch "MarketSweep/pkg/clickhouse"
)

// ClickHouseBarStore reads and writes daily bars in ClickHouse. It serves as
// the bar provider when the deployment keeps its own history, and as the
// persistence sink behind the HTTP provider.
type ClickHouseBarStore struct {
	client *pkgch.Client
	table  string
}

func NewClickHouseBarStore(client *pkgch.Client, table string) *ClickHouseBarStore {
	if table == "" {
		table = "marketsweep.bars_daily"
	}
	return &ClickHouseBarStore{client: client, table: table}
}

// SchemaStatements returns the idempotent DDL for the bar table.
func (s *ClickHouseBarStore) SchemaStatements() []string {
	db := "marketsweep"
	if i := strings.IndexByte(s.table, '.'); i > 0 {
		db = s.table[:i]
	}
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol LowCardinality(String),
			ts     DateTime,
			open   Float64,
			high   Float64,
			low    Float64,
			close  Float64,
			volume Float64
		) ENGINE = ReplacingMergeTree ORDER BY (symbol, ts)`, s.table),
	}
}

// FetchBatch loads bars for the requested symbols in one query, ordered by
// symbol and timestamp.
func (s *ClickHouseBarStore) FetchBatch(ctx context.Context, symbols []string, rng models.DateRange) (map[string][]models.Bar, error) {
	if len(symbols) == 0 {
		return map[string][]models.Bar{}, nil
	}

	placeholders := make([]string, len(symbols))
	args := make([]interface{}, 0, len(symbols)+2)
	for i, sym := range symbols {
		placeholders[i] = "?"
		args = append(args, sym)
	}
	args = append(args, rng.Start.UTC(), rng.End.UTC())

	query := fmt.Sprintf(`SELECT symbol, ts, open, high, low, close, volume
		FROM %s
		WHERE symbol IN (%s) AND ts >= ? AND ts <= ?
		ORDER BY symbol, ts`, s.table, strings.Join(placeholders, ","))

	rows, err := s.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Bar)
	for rows.Next() {
		var b models.Bar
		var ts time.Time
		if err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = ts.UTC()
		out[b.Symbol] = append(out[b.Symbol], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars: %w", err)
	}
	return out, nil
}

// ListSymbols returns every distinct symbol the table holds.
func (s *ClickHouseBarStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.client.DB().QueryContext(ctx,
		fmt.Sprintf("SELECT DISTINCT symbol FROM %s ORDER BY symbol", s.table))
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// StoreBars inserts bars in one batched transaction per call. The table's
// ReplacingMergeTree engine deduplicates re-fetched rows.
func (s *ClickHouseBarStore) StoreBars(ctx context.Context, bars map[string][]models.Bar) error {
	tx, err := s.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %s (symbol, ts, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)", s.table))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, sb := range bars {
		for _, b := range sb {
			if _, err := stmt.ExecContext(ctx, b.Symbol, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert bar %s@%s: %w", b.Symbol, b.Timestamp, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Health pings the connection pool.
func (s *ClickHouseBarStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}
