// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

// Package preview reports mining diagnostics for a candidate support
// threshold, so an operator can see the itemset yield before committing
// the threshold to recomputation configuration.
//
// A preview runs the transaction builder and the miner only. It never
// ranks and never persists.
package preview

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmehring/alsobought/internal/basket"
	"github.com/jmehring/alsobought/internal/mining"
)

// Report summarizes what a candidate support threshold would yield.
type Report struct {
	// Channel is the sales channel the preview ran against.
	Channel string `json:"channel"`

	// Support is the candidate threshold that was evaluated.
	Support float64 `json:"support"`

	// Transactions is how many order transactions were mined.
	Transactions int `json:"transactions"`

	// TotalItemSets is the total number of itemsets meeting the threshold.
	TotalItemSets int `json:"total_item_sets"`

	// BestItemSets holds the top-K itemsets by support, descending.
	BestItemSets []mining.Itemset `json:"best_item_sets"`

	// WorstItemSets holds the bottom-K itemsets by support, ascending.
	WorstItemSets []mining.Itemset `json:"worst_item_sets"`
}

// Service runs threshold previews.
type Service struct {
	builder  *basket.Builder
	miner    mining.Miner
	lookback time.Duration
	k        int
	logger   zerolog.Logger
}

// NewService creates a preview service returning k best/worst itemsets
// per report.
func NewService(builder *basket.Builder, miner mining.Miner, lookback time.Duration, k int, logger zerolog.Logger) *Service {
	if k < 1 {
		k = 5
	}
	return &Service{
		builder:  builder,
		miner:    miner,
		lookback: lookback,
		k:        k,
		logger:   logger.With().Str("component", "preview").Logger(),
	}
}

// Preview mines the channel's order history at the candidate support and
// reports aggregate diagnostics. Nothing is persisted.
func (s *Service) Preview(ctx context.Context, channel string, support mining.MinSupport) (*Report, error) {
	since := time.Now().Add(-s.lookback)

	transactions, err := s.builder.Build(ctx, channel, since)
	if err != nil {
		return nil, fmt.Errorf("build transactions: %w", err)
	}

	itemsets, err := s.miner.Mine(ctx, transactions, support)
	if err != nil {
		return nil, fmt.Errorf("mine at support %v: %w", float64(support), err)
	}

	report := &Report{
		Channel:       channel,
		Support:       float64(support),
		Transactions:  len(transactions),
		TotalItemSets: len(itemsets),
		BestItemSets:  topK(itemsets, s.k, false),
		WorstItemSets: topK(itemsets, s.k, true),
	}

	s.logger.Info().
		Str("channel", channel).
		Float64("support", float64(support)).
		Int("transactions", report.Transactions).
		Int("item_sets", report.TotalItemSets).
		Msg("threshold preview complete")

	return report, nil
}

// topK returns k itemsets sorted by support (descending, or ascending
// when asc is set), ties broken by the item list so previews are
// reproducible.
func topK(itemsets []mining.Itemset, k int, asc bool) []mining.Itemset {
	sorted := make([]mining.Itemset, len(itemsets))
	copy(sorted, itemsets)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Support != sorted[j].Support {
			if asc {
				return sorted[i].Support < sorted[j].Support
			}
			return sorted[i].Support > sorted[j].Support
		}
		return slices.Compare(sorted[i].Items, sorted[j].Items) < 0
	})

	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
