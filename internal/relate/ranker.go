// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

// Package relate turns mined itemsets into per-product related-product
// rankings.
//
// This is where every user-visible ordering property is decided, so the
// rules are strict:
//
//   - Itemsets are processed in a deterministic total order: support
//     descending, ties broken by the sorted item list ascending. Items
//     within an itemset are visited in ascending product-ID order.
//   - For each (subject, other) pair only the first sighting is recorded.
//     Combined with the processing order this means the highest itemset
//     support always wins for a pair.
//   - A subject's list never exceeds the cap, never contains the subject
//     itself, and never contains duplicates.
//
// Given identical itemsets and cap, Rank always produces identical output.
package relate

import (
	"slices"
	"sort"

	"github.com/jmehring/alsobought/internal/mining"
)

// Relation is one entry of a product's related-products list: a product
// that co-occurred with the subject, carrying the support of the itemset
// that produced the pairing.
type Relation struct {
	ProductID string `json:"product_id"`
	Support   int    `json:"support"`
}

// Rank converts itemsets into a map from product ID to its ordered,
// capped, deduplicated related-product list.
//
// Products that appear in no itemset are absent from the map; callers
// treat a missing key the same as an empty list. maxRelated <= 0 is
// tolerated and produces present-but-empty lists for every product seen —
// useful for callers that validate the cap elsewhere.
func Rank(itemsets []mining.Itemset, maxRelated int) map[string][]Relation {
	ordered := orderItemsets(itemsets)

	relations := make(map[string][]Relation)
	seen := make(map[string]map[string]struct{})

	for _, set := range ordered {
		for _, subject := range set.Items {
			if _, ok := relations[subject]; !ok {
				relations[subject] = []Relation{}
				seen[subject] = make(map[string]struct{})
			}
			for _, other := range set.Items {
				if other == subject {
					continue
				}
				if _, dup := seen[subject][other]; dup {
					continue
				}
				if len(relations[subject]) >= maxRelated {
					break
				}
				seen[subject][other] = struct{}{}
				relations[subject] = append(relations[subject], Relation{
					ProductID: other,
					Support:   set.Support,
				})
			}
		}
	}

	return relations
}

// orderItemsets returns the itemsets in the pinned total order: support
// descending, then sorted item lists ascending. Input is not mutated;
// item slices are normalized to ascending order.
func orderItemsets(itemsets []mining.Itemset) []mining.Itemset {
	ordered := make([]mining.Itemset, len(itemsets))
	for i, set := range itemsets {
		items := slices.Clone(set.Items)
		slices.Sort(items)
		ordered[i] = mining.Itemset{Items: items, Support: set.Support}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Support != ordered[j].Support {
			return ordered[i].Support > ordered[j].Support
		}
		return slices.Compare(ordered[i].Items, ordered[j].Items) < 0
	})
	return ordered
}

// Cap returns relations truncated to at most maxRelated entries. Used at
// read time so a shrunken cap applies without waiting for the next run.
func Cap(relations []Relation, maxRelated int) []Relation {
	if maxRelated < 0 {
		maxRelated = 0
	}
	if len(relations) <= maxRelated {
		return relations
	}
	return relations[:maxRelated]
}
