// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

// Package basket reduces order history to mining transactions.
//
// A transaction is the deduplicated set of product IDs purchased in one
// placed order. Variant-level purchases collapse to their product: two
// sizes of the same shirt are one item. Orders with fewer than two
// distinct products are kept; they simply cannot contribute to any
// itemset of size two or more.
package basket

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmehring/alsobought/internal/orders"
)

// Builder builds transactions from an order source in bounded pages.
type Builder struct {
	source    orders.Source
	batchSize int
	logger    zerolog.Logger
}

// NewBuilder creates a transaction builder. batchSize bounds how many
// orders are fetched per page; values below 1 fall back to 1000.
func NewBuilder(source orders.Source, batchSize int, logger zerolog.Logger) *Builder {
	if batchSize < 1 {
		batchSize = 1000
	}
	return &Builder{
		source:    source,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "basket").Logger(),
	}
}

// Build returns one transaction per placed order in the channel since the
// given time. No orders in the window is not an error; the result is
// simply empty.
func (b *Builder) Build(ctx context.Context, channel string, since time.Time) ([][]string, error) {
	var (
		transactions [][]string
		offset       int
	)

	for {
		page, err := b.source.Page(ctx, orders.Query{
			Channel: channel,
			Since:   since,
			Offset:  offset,
			Limit:   b.batchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch orders (offset %d): %w", offset, err)
		}
		if len(page) == 0 {
			break
		}

		for _, o := range page {
			transactions = append(transactions, productSet(o))
		}

		offset += len(page)
		if len(page) < b.batchSize {
			break
		}
	}

	b.logger.Debug().
		Str("channel", channel).
		Time("since", since).
		Int("transactions", len(transactions)).
		Msg("built transactions")

	return transactions, nil
}

// productSet collapses an order's lines to a sorted set of product IDs.
func productSet(o orders.Order) []string {
	seen := make(map[string]struct{}, len(o.Lines))
	set := make([]string, 0, len(o.Lines))
	for _, line := range o.Lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		set = append(set, line.ProductID)
	}
	sort.Strings(set)
	return set
}
