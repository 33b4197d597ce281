// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

package preview

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmehring/alsobought/internal/basket"
	"github.com/jmehring/alsobought/internal/mining"
	"github.com/jmehring/alsobought/internal/orders"
)

// stubMiner returns canned itemsets, recording the inputs it saw.
type stubMiner struct {
	itemsets     []mining.Itemset
	err          error
	transactions int
	support      mining.MinSupport
}

func (m *stubMiner) Mine(ctx context.Context, transactions [][]string, minSupport mining.MinSupport) ([]mining.Itemset, error) {
	m.transactions = len(transactions)
	m.support = minSupport
	return m.itemsets, m.err
}

func testBuilder(t *testing.T, orderCount int) *basket.Builder {
	t.Helper()
	source := orders.NewMemory()
	for i := 0; i < orderCount; i++ {
		source.Add(orders.Order{
			ID:       string(rune('a' + i)),
			Channel:  "web",
			PlacedAt: time.Now().Add(-time.Hour),
			Lines:    []orders.Line{{ProductID: "p1"}, {ProductID: "p2"}},
		})
	}
	return basket.NewBuilder(source, 100, zerolog.Nop())
}

func TestPreview(t *testing.T) {
	miner := &stubMiner{itemsets: []mining.Itemset{
		{Items: []string{"p1"}, Support: 3},
		{Items: []string{"p2"}, Support: 3},
		{Items: []string{"p1", "p2"}, Support: 3},
	}}
	svc := NewService(testBuilder(t, 3), miner, 24*time.Hour, 5, zerolog.Nop())

	report, err := svc.Preview(context.Background(), "web", 0.5)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	if report.Channel != "web" {
		t.Errorf("channel = %q, want web", report.Channel)
	}
	if report.Support != 0.5 {
		t.Errorf("support = %v, want 0.5", report.Support)
	}
	if report.Transactions != 3 {
		t.Errorf("transactions = %d, want 3", report.Transactions)
	}
	if report.TotalItemSets != 3 {
		t.Errorf("total item sets = %d, want 3", report.TotalItemSets)
	}
	if miner.support != 0.5 {
		t.Errorf("miner saw support %v, want 0.5", miner.support)
	}
	if miner.transactions != 3 {
		t.Errorf("miner saw %d transactions, want 3", miner.transactions)
	}
}

func TestPreviewBestAndWorst(t *testing.T) {
	miner := &stubMiner{itemsets: []mining.Itemset{
		{Items: []string{"c"}, Support: 1},
		{Items: []string{"a"}, Support: 9},
		{Items: []string{"b"}, Support: 5},
		{Items: []string{"a", "b"}, Support: 5},
	}}
	svc := NewService(testBuilder(t, 1), miner, 24*time.Hour, 2, zerolog.Nop())

	report, err := svc.Preview(context.Background(), "web", 1)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	wantBest := []mining.Itemset{
		{Items: []string{"a"}, Support: 9},
		{Items: []string{"a", "b"}, Support: 5},
	}
	if !reflect.DeepEqual(report.BestItemSets, wantBest) {
		t.Errorf("best = %v, want %v", report.BestItemSets, wantBest)
	}

	wantWorst := []mining.Itemset{
		{Items: []string{"c"}, Support: 1},
		{Items: []string{"a", "b"}, Support: 5},
	}
	if !reflect.DeepEqual(report.WorstItemSets, wantWorst) {
		t.Errorf("worst = %v, want %v", report.WorstItemSets, wantWorst)
	}
}

func TestPreviewFewerThanK(t *testing.T) {
	miner := &stubMiner{itemsets: []mining.Itemset{
		{Items: []string{"a"}, Support: 2},
	}}
	svc := NewService(testBuilder(t, 1), miner, 24*time.Hour, 5, zerolog.Nop())

	report, err := svc.Preview(context.Background(), "web", 1)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(report.BestItemSets) != 1 || len(report.WorstItemSets) != 1 {
		t.Errorf("best/worst lengths = %d/%d, want 1/1", len(report.BestItemSets), len(report.WorstItemSets))
	}
}

func TestPreviewMinerError(t *testing.T) {
	miner := &stubMiner{err: mining.ErrTooManyItemsets}
	svc := NewService(testBuilder(t, 1), miner, 24*time.Hour, 5, zerolog.Nop())

	_, err := svc.Preview(context.Background(), "web", 0.0001)
	if !errors.Is(err, mining.ErrTooManyItemsets) {
		t.Fatalf("Preview() error = %v, want wrapped ErrTooManyItemsets", err)
	}
}
