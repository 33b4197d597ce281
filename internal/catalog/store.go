// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

// Package catalog persists and serves per-product related-product lists.
//
// One list is stored per (channel, product) pair. Lists are replaced
// atomically per channel at the end of a successful recomputation run;
// readers only ever observe committed snapshots. Between runs the store
// is read-only, so serving requires no locking.
//
// # Manual curation
//
// Operators can pin entries to a product's list. With PreserveManual
// enabled (the default), pinned entries survive recomputation at the head
// of the list and mined entries fill the remaining cap; disabled, a run
// replaces lists wholesale.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jmehring/alsobought/internal/relate"
)

// Entry is one stored relation. Support is retained for debuggability;
// manual entries carry no support.
type Entry struct {
	ProductID string `json:"product_id"`
	Support   int    `json:"support,omitempty"`
	Manual    bool   `json:"manual,omitempty"`
}

// StoredList is a product's persisted related-products list.
type StoredList struct {
	ProductID string    `json:"product_id"`
	Channel   string    `json:"channel"`
	Entries   []Entry   `json:"entries"`
	RunID     string    `json:"run_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrNotFound indicates no list is stored for the (channel, product)
// pair. Serving treats it as an empty list, never as a failure.
var ErrNotFound = errors.New("catalog: relation list not found")

// Store persists relation lists.
type Store interface {
	// Get returns the stored list for a product, or ErrNotFound.
	Get(ctx context.Context, channel, productID string) (*StoredList, error)

	// ReplaceChannel atomically replaces every relation list in a channel
	// with the ranked output of one recomputation run, capped to
	// maxRelated mined entries per product. Stored lists for products
	// absent from ranked are removed, except that manually pinned entries
	// are kept when the store preserves manual curation.
	ReplaceChannel(ctx context.Context, channel string, ranked map[string][]relate.Relation, maxRelated int, runID string) error

	// SetManual pins the given products at the head of a product's list.
	// An empty slice unpins everything.
	SetManual(ctx context.Context, channel, productID string, relatedIDs []string) error

	// Close releases the underlying storage.
	Close() error
}
