// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

// Package orders provides read access to historical order data.
//
// The Source interface pages through placed orders for one sales channel
// within a time window. Order history can be arbitrarily large, so it is
// never fetched in a single query; callers iterate bounded pages.
//
// Store is the production DuckDB implementation; Memory backs tests and
// local seeding.
package orders

import (
	"context"
	"time"
)

// Line is one purchased line of an order. Multiple variants of the same
// product appear as separate lines sharing a ProductID.
type Line struct {
	ProductID string
	VariantID string
}

// Order is one placed order with its purchased lines.
type Order struct {
	ID       string
	Channel  string
	PlacedAt time.Time
	Lines    []Line
}

// Query selects a page of order history.
type Query struct {
	// Channel restricts results to one sales channel.
	Channel string

	// Since is the inclusive lower bound on placement time.
	Since time.Time

	// Offset and Limit page through the result set in placement order
	// (placed_at, then id, for a stable ordering).
	Offset int
	Limit  int
}

// Source supplies placed orders. Abandoned or otherwise unplaced orders
// are never returned.
type Source interface {
	// Page returns the next page of placed orders for the query. A short
	// or empty page signals the end of the result set.
	Page(ctx context.Context, q Query) ([]Order, error)
}
