// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

package mining

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// FPGrowth mines frequent itemsets with the FP-Growth algorithm.
//
// The transaction set is compressed into a prefix tree (FP-tree) whose
// paths share common frequent-item prefixes, then mined recursively via
// conditional trees, without candidate generation. Item order inside the
// tree is pinned to (frequency desc, product ID asc) so that repeated runs
// over the same data produce identical output.
type FPGrowth struct {
	limits Limits
}

// NewFPGrowth creates a miner with the given limits. Zero limits fall
// back to DefaultLimits.
func NewFPGrowth(limits Limits) *FPGrowth {
	defaults := DefaultLimits()
	if limits.MaxItemSets < 1 {
		limits.MaxItemSets = defaults.MaxItemSets
	}
	if limits.Budget <= 0 {
		limits.Budget = defaults.Budget
	}
	return &FPGrowth{limits: limits}
}

// Mine returns every itemset whose support meets minSupport.
// An empty transaction list yields no itemsets and no error.
func (f *FPGrowth) Mine(ctx context.Context, transactions [][]string, minSupport MinSupport) ([]Itemset, error) {
	if len(transactions) == 0 {
		return nil, nil
	}

	minCount := minSupport.AbsoluteCount(len(transactions))

	ctx, cancel := context.WithTimeout(ctx, f.limits.Budget)
	defer cancel()

	paths := make([]weightedPath, 0, len(transactions))
	for _, tx := range transactions {
		paths = append(paths, weightedPath{items: tx, count: 1})
	}

	tree := buildTree(paths, minCount)

	run := &mineRun{ceiling: f.limits.MaxItemSets}
	if err := run.mine(ctx, tree, nil, minCount); err != nil {
		return nil, err
	}
	return run.out, nil
}

// fpNode is one node of an FP-tree.
type fpNode struct {
	item     string
	count    int
	parent   *fpNode
	children map[string]*fpNode
	next     *fpNode // node-link chain to the next node holding the same item
}

// fpTree is an FP-tree with its header table.
type fpTree struct {
	root   *fpNode
	heads  map[string]*fpNode
	tails  map[string]*fpNode
	counts map[string]int
	order  []string // frequent items by (count desc, item asc)
}

// weightedPath is a transaction (or conditional prefix path) with a count.
type weightedPath struct {
	items []string
	count int
}

// buildTree constructs an FP-tree from weighted paths, dropping items
// below minCount.
func buildTree(paths []weightedPath, minCount int) *fpTree {
	counts := make(map[string]int)
	for _, p := range paths {
		for _, item := range p.items {
			counts[item] += p.count
		}
	}

	t := &fpTree{
		root:   &fpNode{children: make(map[string]*fpNode)},
		heads:  make(map[string]*fpNode),
		tails:  make(map[string]*fpNode),
		counts: make(map[string]int),
	}
	for item, count := range counts {
		if count >= minCount {
			t.counts[item] = count
			t.order = append(t.order, item)
		}
	}
	sort.Slice(t.order, func(i, j int) bool {
		a, b := t.order[i], t.order[j]
		if t.counts[a] != t.counts[b] {
			return t.counts[a] > t.counts[b]
		}
		return a < b
	})

	rank := make(map[string]int, len(t.order))
	for i, item := range t.order {
		rank[item] = i
	}

	filtered := make([]string, 0, 16)
	for _, p := range paths {
		filtered = filtered[:0]
		for _, item := range p.items {
			if _, ok := rank[item]; ok {
				filtered = append(filtered, item)
			}
		}
		sort.Slice(filtered, func(i, j int) bool {
			return rank[filtered[i]] < rank[filtered[j]]
		})
		t.insert(filtered, p.count)
	}

	return t
}

// insert adds one frequency-ordered path to the tree.
func (t *fpTree) insert(items []string, count int) {
	node := t.root
	for _, item := range items {
		child, ok := node.children[item]
		if !ok {
			child = &fpNode{
				item:     item,
				parent:   node,
				children: make(map[string]*fpNode),
			}
			node.children[item] = child
			if t.heads[item] == nil {
				t.heads[item] = child
			} else {
				t.tails[item].next = child
			}
			t.tails[item] = child
		}
		child.count += count
		node = child
	}
}

// mineRun accumulates output while enforcing the itemset ceiling.
type mineRun struct {
	ceiling int
	out     []Itemset
}

// mine recursively extracts frequent itemsets from the tree. suffix holds
// the items already fixed by enclosing conditional trees, sorted ascending.
func (r *mineRun) mine(ctx context.Context, tree *fpTree, suffix []string, minCount int) error {
	// Least frequent first: each item's conditional tree only contains
	// items more frequent than itself.
	for i := len(tree.order) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			return budgetErr(ctx)
		default:
		}

		item := tree.order[i]
		itemset := insertSorted(suffix, item)

		if err := r.emit(itemset, tree.counts[item]); err != nil {
			return err
		}

		var paths []weightedPath
		for node := tree.heads[item]; node != nil; node = node.next {
			var prefix []string
			for p := node.parent; p != nil && p.item != ""; p = p.parent {
				prefix = append(prefix, p.item)
			}
			if len(prefix) > 0 {
				paths = append(paths, weightedPath{items: prefix, count: node.count})
			}
		}
		if len(paths) == 0 {
			continue
		}

		cond := buildTree(paths, minCount)
		if len(cond.order) == 0 {
			continue
		}
		if err := r.mine(ctx, cond, itemset, minCount); err != nil {
			return err
		}
	}
	return nil
}

// emit records one itemset, honoring the ceiling.
func (r *mineRun) emit(items []string, support int) error {
	if len(r.out) >= r.ceiling {
		return fmt.Errorf("%w (ceiling %d)", ErrTooManyItemsets, r.ceiling)
	}
	r.out = append(r.out, Itemset{Items: items, Support: support})
	return nil
}

// insertSorted returns a new slice with item inserted into the sorted
// slice s. s is never mutated; conditional trees at different recursion
// depths share suffixes.
func insertSorted(s []string, item string) []string {
	pos := sort.SearchStrings(s, item)
	out := make([]string, 0, len(s)+1)
	out = append(out, s[:pos]...)
	out = append(out, item)
	out = append(out, s[pos:]...)
	return out
}

// budgetErr maps context termination to the mining error taxonomy.
func budgetErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrBudgetExceeded
	}
	return ctx.Err()
}
