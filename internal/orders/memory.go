// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

package orders

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory order source with the same paging semantics as
// the DuckDB store. It backs unit tests and local seeding.
type Memory struct {
	mu     sync.RWMutex
	placed []Order
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{}
}

// Add stores a placed order.
func (m *Memory) Add(o Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, o)
}

// Page implements Source.
func (m *Memory) Page(ctx context.Context, q Query) ([]Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Order
	for _, o := range m.placed {
		if o.Channel == q.Channel && !o.PlacedAt.Before(q.Since) {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].PlacedAt.Equal(matched[j].PlacedAt) {
			return matched[i].PlacedAt.Before(matched[j].PlacedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if q.Offset >= len(matched) {
		return nil, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[q.Offset:end], nil
}
