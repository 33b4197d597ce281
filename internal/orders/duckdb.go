// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

package orders

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jmehring/alsobought/internal/logging"
)

// schema creates the order history tables if they do not exist. The
// columnar layout suits the one access pattern this service has: scan a
// channel's placed orders by time window.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id        VARCHAR PRIMARY KEY,
    channel   VARCHAR NOT NULL,
    state     VARCHAR NOT NULL,
    placed_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS order_lines (
    order_id   VARCHAR NOT NULL,
    product_id VARCHAR NOT NULL,
    variant_id VARCHAR NOT NULL
);
`

// Store is a DuckDB-backed order history source.
//
// Reads run through a circuit breaker: if the database starts failing,
// recomputation runs fail fast instead of hammering a broken store.
type Store struct {
	conn    *sql.DB
	breaker *gobreaker.CircuitBreaker[[]Order]
}

// Open opens (or creates) the DuckDB database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dir, err)
			}
		}
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	logger := logging.Logger()
	breaker := gobreaker.NewCircuitBreaker[[]Order](gobreaker.Settings{
		Name:     "order-history",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("order store circuit breaker state change")
		},
	})

	return &Store{conn: conn, breaker: breaker}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Page implements Source.
func (s *Store) Page(ctx context.Context, q Query) ([]Order, error) {
	return s.breaker.Execute(func() ([]Order, error) {
		return s.page(ctx, q)
	})
}

func (s *Store) page(ctx context.Context, q Query) ([]Order, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, placed_at
		FROM orders
		WHERE channel = ? AND state = 'placed' AND placed_at >= ?
		ORDER BY placed_at, id
		LIMIT ? OFFSET ?`,
		q.Channel, q.Since, q.Limit, q.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var (
		page  []Order
		index = make(map[string]int)
	)
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.PlacedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Channel = q.Channel
		index[o.ID] = len(page)
		page = append(page, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	if len(page) == 0 {
		return nil, nil
	}

	if err := s.attachLines(ctx, page, index); err != nil {
		return nil, err
	}
	return page, nil
}

// attachLines fetches the purchased lines for one page of orders.
func (s *Store) attachLines(ctx context.Context, page []Order, index map[string]int) error {
	placeholders := make([]string, len(page))
	args := make([]any, len(page))
	for i, o := range page {
		placeholders[i] = "?"
		args[i] = o.ID
	}

	query := fmt.Sprintf(`
		SELECT order_id, product_id, variant_id
		FROM order_lines
		WHERE order_id IN (%s)
		ORDER BY order_id, product_id, variant_id`,
		strings.Join(placeholders, ", "),
	)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			line    Line
		)
		if err := rows.Scan(&orderID, &line.ProductID, &line.VariantID); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		if i, ok := index[orderID]; ok {
			page[i].Lines = append(page[i].Lines, line)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order lines: %w", err)
	}
	return nil
}

// Insert stores an order with its lines. Used by seeding and tests; the
// serving path never writes order history.
func (s *Store) Insert(ctx context.Context, o Order, state string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, channel, state, placed_at) VALUES (?, ?, ?, ?)`,
		o.ID, o.Channel, state, o.PlacedAt,
	); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for _, line := range o.Lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_lines (order_id, product_id, variant_id) VALUES (?, ?, ?)`,
			o.ID, line.ProductID, line.VariantID,
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	return tx.Commit()
}
