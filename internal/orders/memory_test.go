// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

package orders

import (
	"context"
	"testing"
	"time"
)

var memTime = time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)

func TestMemoryPage(t *testing.T) {
	m := NewMemory()
	m.Add(Order{ID: "o3", Channel: "web", PlacedAt: memTime.Add(2 * time.Hour)})
	m.Add(Order{ID: "o1", Channel: "web", PlacedAt: memTime})
	m.Add(Order{ID: "o2", Channel: "web", PlacedAt: memTime.Add(time.Hour)})
	m.Add(Order{ID: "x1", Channel: "pos", PlacedAt: memTime})
	m.Add(Order{ID: "old", Channel: "web", PlacedAt: memTime.Add(-time.Hour)})

	page, err := m.Page(context.Background(), Query{
		Channel: "web",
		Since:   memTime,
		Offset:  0,
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	wantIDs := []string{"o1", "o2", "o3"}
	if len(page) != len(wantIDs) {
		t.Fatalf("Page() returned %d orders, want %d", len(page), len(wantIDs))
	}
	for i, want := range wantIDs {
		if page[i].ID != want {
			t.Errorf("page[%d].ID = %q, want %q", i, page[i].ID, want)
		}
	}
}

func TestMemoryPageOffsets(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 5; i++ {
		m.Add(Order{
			ID:       string(rune('a' + i)),
			Channel:  "web",
			PlacedAt: memTime.Add(time.Duration(i) * time.Minute),
		})
	}

	q := Query{Channel: "web", Since: memTime, Limit: 2}

	var collected []string
	for offset := 0; ; offset += q.Limit {
		q.Offset = offset
		page, err := m.Page(context.Background(), q)
		if err != nil {
			t.Fatalf("Page(offset %d) error = %v", offset, err)
		}
		if len(page) == 0 {
			break
		}
		for _, o := range page {
			collected = append(collected, o.ID)
		}
		if len(page) < q.Limit {
			break
		}
	}

	want := []string{"a", "b", "c", "d", "e"}
	if len(collected) != len(want) {
		t.Fatalf("collected %v, want %v", collected, want)
	}
	for i := range want {
		if collected[i] != want[i] {
			t.Fatalf("collected %v, want %v", collected, want)
		}
	}
}

func TestMemoryPageStableTieBreak(t *testing.T) {
	m := NewMemory()
	m.Add(Order{ID: "b", Channel: "web", PlacedAt: memTime})
	m.Add(Order{ID: "a", Channel: "web", PlacedAt: memTime})

	page, err := m.Page(context.Background(), Query{Channel: "web", Since: memTime, Limit: 10})
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(page) != 2 || page[0].ID != "a" || page[1].ID != "b" {
		t.Fatalf("page = %v, want ties ordered by ID", page)
	}
}

func TestMemoryPageCanceledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Page(ctx, Query{Channel: "web", Limit: 10}); err == nil {
		t.Fatal("Page() = nil error, want context error")
	}
}
