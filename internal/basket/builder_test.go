// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

package basket

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmehring/alsobought/internal/orders"
)

var testTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func order(id, channel string, placedAt time.Time, productIDs ...string) orders.Order {
	lines := make([]orders.Line, 0, len(productIDs))
	for i, p := range productIDs {
		lines = append(lines, orders.Line{ProductID: p, VariantID: fmt.Sprintf("%s-v%d", p, i)})
	}
	return orders.Order{ID: id, Channel: channel, PlacedAt: placedAt, Lines: lines}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		orders  []orders.Order
		channel string
		since   time.Time
		want    [][]string
	}{
		{
			name: "one transaction per order",
			orders: []orders.Order{
				order("o1", "web", testTime, "a", "b"),
				order("o2", "web", testTime.Add(time.Hour), "b", "c"),
			},
			channel: "web",
			since:   testTime.Add(-time.Hour),
			want:    [][]string{{"a", "b"}, {"b", "c"}},
		},
		{
			name: "variants collapse to one product",
			orders: []orders.Order{
				{ID: "o1", Channel: "web", PlacedAt: testTime, Lines: []orders.Line{
					{ProductID: "shirt", VariantID: "shirt-s"},
					{ProductID: "shirt", VariantID: "shirt-m"},
					{ProductID: "hat", VariantID: "hat-one"},
				}},
			},
			channel: "web",
			since:   testTime.Add(-time.Hour),
			want:    [][]string{{"hat", "shirt"}},
		},
		{
			name: "single-product orders are kept",
			orders: []orders.Order{
				order("o1", "web", testTime, "a"),
				order("o2", "web", testTime.Add(time.Minute), "a", "b"),
			},
			channel: "web",
			since:   testTime.Add(-time.Hour),
			want:    [][]string{{"a"}, {"a", "b"}},
		},
		{
			name: "other channels excluded",
			orders: []orders.Order{
				order("o1", "web", testTime, "a", "b"),
				order("o2", "pos", testTime, "c", "d"),
			},
			channel: "web",
			since:   testTime.Add(-time.Hour),
			want:    [][]string{{"a", "b"}},
		},
		{
			name: "orders before the window excluded",
			orders: []orders.Order{
				order("o1", "web", testTime.Add(-48*time.Hour), "a", "b"),
				order("o2", "web", testTime, "c", "d"),
			},
			channel: "web",
			since:   testTime.Add(-time.Hour),
			want:    [][]string{{"c", "d"}},
		},
		{
			name:    "no orders",
			orders:  nil,
			channel: "web",
			since:   testTime,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := orders.NewMemory()
			for _, o := range tt.orders {
				source.Add(o)
			}

			builder := NewBuilder(source, 1000, zerolog.Nop())
			got, err := builder.Build(context.Background(), tt.channel, tt.since)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Build() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildPagesThroughHistory(t *testing.T) {
	source := orders.NewMemory()
	for i := 0; i < 25; i++ {
		source.Add(order(fmt.Sprintf("o%02d", i), "web", testTime.Add(time.Duration(i)*time.Minute), "a", "b"))
	}

	builder := NewBuilder(source, 10, zerolog.Nop())
	got, err := builder.Build(context.Background(), "web", testTime.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(got) != 25 {
		t.Errorf("Build() returned %d transactions, want 25", len(got))
	}
}

type failingSource struct{ err error }

func (f failingSource) Page(ctx context.Context, q orders.Query) ([]orders.Order, error) {
	return nil, f.err
}

func TestBuildSourceError(t *testing.T) {
	wantErr := errors.New("history unavailable")
	builder := NewBuilder(failingSource{err: wantErr}, 10, zerolog.Nop())

	_, err := builder.Build(context.Background(), "web", testTime)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Build() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestBuildCanceledContext(t *testing.T) {
	source := orders.NewMemory()
	source.Add(order("o1", "web", testTime, "a", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	builder := NewBuilder(source, 10, zerolog.Nop())
	if _, err := builder.Build(ctx, "web", testTime.Add(-time.Hour)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Build() error = %v, want context.Canceled", err)
	}
}
