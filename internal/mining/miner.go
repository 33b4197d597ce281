// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

// Package mining discovers frequent itemsets in order transactions.
//
// A transaction is the deduplicated set of product IDs purchased in one
// order. An itemset is a set of products together with its support: the
// number of transactions containing every product in the set. The Miner
// interface keeps the algorithm pluggable; FPGrowth is the default
// implementation.
//
// Mining is the combinatorially dangerous stage of the pipeline. Every
// implementation must stay time- and memory-bounded: a pathologically low
// support threshold has to fail loudly (ErrTooManyItemsets,
// ErrBudgetExceeded) rather than hang or exhaust memory.
package mining

import (
	"context"
	"errors"
	"math"
	"time"
)

// Itemset is a set of products with the count of transactions that
// contain all of them. Items are sorted ascending.
type Itemset struct {
	Items   []string `json:"items"`
	Support int      `json:"support"`
}

// MinSupport is a minimum support threshold. Values in (0,1) are a
// fraction of the transaction count; values >= 1 are an absolute count.
type MinSupport float64

// AbsoluteCount normalizes the threshold to an absolute transaction count
// for the given number of transactions. Fractional thresholds round up
// and never drop below 1.
func (m MinSupport) AbsoluteCount(transactions int) int {
	if m >= 1 {
		return int(m)
	}
	count := int(math.Ceil(float64(m) * float64(transactions)))
	if count < 1 {
		count = 1
	}
	return count
}

// Limits bounds a single mining run.
type Limits struct {
	// MaxItemSets aborts the run once more than this many itemsets have
	// been produced.
	MaxItemSets int

	// Budget is the wall-clock budget for the run.
	Budget time.Duration
}

// DefaultLimits returns production default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxItemSets: 100000,
		Budget:      2 * time.Minute,
	}
}

// Mining failure modes. Both abort the run with no partial result.
var (
	// ErrTooManyItemsets indicates the itemset-count ceiling was exceeded.
	ErrTooManyItemsets = errors.New("mining: itemset ceiling exceeded")

	// ErrBudgetExceeded indicates the wall-clock budget was exhausted.
	ErrBudgetExceeded = errors.New("mining: wall-clock budget exceeded")
)

// Miner finds all itemsets whose support meets the threshold.
//
// Implementations guarantee the returned itemsets are exactly those
// meeting the threshold, each with Items sorted ascending. No ordering
// across itemsets is guaranteed; ranking is the caller's concern.
type Miner interface {
	Mine(ctx context.Context, transactions [][]string, minSupport MinSupport) ([]Itemset, error)
}
