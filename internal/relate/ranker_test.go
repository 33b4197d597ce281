// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

package relate

import (
	"reflect"
	"testing"

	"github.com/jmehring/alsobought/internal/mining"
)

func ids(relations []Relation) []string {
	out := make([]string, 0, len(relations))
	for _, rel := range relations {
		out = append(out, rel.ProductID)
	}
	return out
}

func TestRank(t *testing.T) {
	tests := []struct {
		name       string
		itemsets   []mining.Itemset
		maxRelated int
		want       map[string][]string
	}{
		{
			name: "single pair",
			itemsets: []mining.Itemset{
				{Items: []string{"a", "b"}, Support: 4},
			},
			maxRelated: 5,
			want: map[string][]string{
				"a": {"b"},
				"b": {"a"},
			},
		},
		{
			name: "support descending then item order",
			itemsets: []mining.Itemset{
				{Items: []string{"1", "2", "3"}, Support: 1},
				{Items: []string{"2", "3", "4"}, Support: 99},
				{Items: []string{"1", "3", "4"}, Support: 3},
			},
			maxRelated: 3,
			want: map[string][]string{
				"1": {"3", "4", "2"},
				"2": {"3", "4", "1"},
				"3": {"2", "4", "1"},
				"4": {"2", "3", "1"},
			},
		},
		{
			name: "equal support breaks ties on sorted items",
			itemsets: []mining.Itemset{
				{Items: []string{"x", "z"}, Support: 7},
				{Items: []string{"x", "y"}, Support: 7},
			},
			maxRelated: 5,
			want: map[string][]string{
				"x": {"y", "z"},
				"y": {"x"},
				"z": {"x"},
			},
		},
		{
			name: "cap truncates",
			itemsets: []mining.Itemset{
				{Items: []string{"a", "b", "c", "d"}, Support: 10},
			},
			maxRelated: 2,
			want: map[string][]string{
				"a": {"b", "c"},
				"b": {"a", "c"},
				"c": {"a", "b"},
				"d": {"a", "b"},
			},
		},
		{
			name: "subset does not duplicate pairs",
			itemsets: []mining.Itemset{
				{Items: []string{"a", "b", "c"}, Support: 5},
				{Items: []string{"a", "b"}, Support: 8},
			},
			maxRelated: 5,
			want: map[string][]string{
				"a": {"b", "c"},
				"b": {"a", "c"},
				"c": {"a", "b"},
			},
		},
		{
			name:       "no itemsets",
			itemsets:   nil,
			maxRelated: 5,
			want:       map[string][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rank(tt.itemsets, tt.maxRelated)
			if len(got) != len(tt.want) {
				t.Fatalf("Rank() produced %d subjects, want %d", len(got), len(tt.want))
			}
			for subject, wantIDs := range tt.want {
				gotRel, ok := got[subject]
				if !ok {
					t.Fatalf("Rank() missing subject %q", subject)
				}
				if !reflect.DeepEqual(ids(gotRel), wantIDs) {
					t.Errorf("Rank()[%q] = %v, want %v", subject, ids(gotRel), wantIDs)
				}
			}
		})
	}
}

func TestRankNoSelfRelation(t *testing.T) {
	got := Rank([]mining.Itemset{
		{Items: []string{"a", "b", "c"}, Support: 3},
	}, 10)
	for subject, relations := range got {
		for _, rel := range relations {
			if rel.ProductID == subject {
				t.Errorf("subject %q relates to itself", subject)
			}
		}
	}
}

func TestRankHighestSupportWins(t *testing.T) {
	got := Rank([]mining.Itemset{
		{Items: []string{"a", "b"}, Support: 2},
		{Items: []string{"a", "b", "c"}, Support: 9},
	}, 5)

	if len(got["a"]) == 0 || got["a"][0].ProductID != "b" {
		t.Fatalf("got[a] = %v, want b first", got["a"])
	}
	if got["a"][0].Support != 9 {
		t.Errorf("pair (a,b) support = %d, want 9 from the higher-support itemset", got["a"][0].Support)
	}
}

func TestRankZeroCap(t *testing.T) {
	got := Rank([]mining.Itemset{
		{Items: []string{"a", "b"}, Support: 3},
	}, 0)

	for _, subject := range []string{"a", "b"} {
		relations, ok := got[subject]
		if !ok {
			t.Fatalf("subject %q absent, want present with empty list", subject)
		}
		if len(relations) != 0 {
			t.Errorf("got[%q] = %v, want empty", subject, relations)
		}
	}
}

func TestRankDeterministic(t *testing.T) {
	itemsets := []mining.Itemset{
		{Items: []string{"p3", "p1"}, Support: 5},
		{Items: []string{"p2", "p1"}, Support: 5},
		{Items: []string{"p4", "p2", "p3"}, Support: 8},
		{Items: []string{"p5", "p1"}, Support: 2},
	}

	first := Rank(itemsets, 4)
	for i := 0; i < 20; i++ {
		// Shuffle-free but order-perturbed: reversed input must not matter.
		reversed := make([]mining.Itemset, len(itemsets))
		for j, set := range itemsets {
			reversed[len(itemsets)-1-j] = set
		}
		got := Rank(reversed, 4)
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differed:\ngot  %v\nwant %v", i, got, first)
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	itemsets := []mining.Itemset{
		{Items: []string{"c", "a", "b"}, Support: 3},
	}
	Rank(itemsets, 5)
	if !reflect.DeepEqual(itemsets[0].Items, []string{"c", "a", "b"}) {
		t.Errorf("input items mutated: %v", itemsets[0].Items)
	}
}

func TestCap(t *testing.T) {
	relations := []Relation{
		{ProductID: "a", Support: 5},
		{ProductID: "b", Support: 4},
		{ProductID: "c", Support: 3},
	}

	tests := []struct {
		name       string
		maxRelated int
		wantLen    int
	}{
		{"below length", 2, 2},
		{"equal length", 3, 3},
		{"above length", 10, 3},
		{"zero", 0, 0},
		{"negative", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cap(relations, tt.maxRelated)
			if len(got) != tt.wantLen {
				t.Errorf("Cap() length = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}
