// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/jmehring/alsobought/internal/relate"
)

// relKeyPrefix namespaces relation-list keys in Badger.
const relKeyPrefix = "rel:"

// BadgerStore implements Store on BadgerDB.
type BadgerStore struct {
	db             *badger.DB
	preserveManual bool
}

// OpenBadger opens (or creates) a Badger-backed store at path. An empty
// path opens an in-memory store, used by tests.
func OpenBadger(path string, preserveManual bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, preserveManual: preserveManual}, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// relKey builds the storage key for a (channel, product) pair.
func relKey(channel, productID string) []byte {
	return []byte(relKeyPrefix + channel + ":" + productID)
}

// channelPrefix is the key prefix covering every list in a channel.
func channelPrefix(channel string) []byte {
	return []byte(relKeyPrefix + channel + ":")
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, channel, productID string) (*StoredList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var list StoredList
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(relKey(channel, productID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get relation list: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &list)
		})
	})
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// ReplaceChannel implements Store. All writes for the run land in a single
// write batch so readers never observe a half-updated channel.
func (s *BadgerStore) ReplaceChannel(ctx context.Context, channel string, ranked map[string][]relate.Relation, maxRelated int, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	existing, err := s.channelLists(channel)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	batch := s.db.NewWriteBatch()
	defer batch.Cancel()

	written := make(map[string]struct{}, len(ranked))
	for productID, relations := range ranked {
		entries := s.mergeEntries(manualEntries(existing[productID]), relations, maxRelated)
		if err := s.batchSet(batch, StoredList{
			ProductID: productID,
			Channel:   channel,
			Entries:   entries,
			RunID:     runID,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		written[productID] = struct{}{}
	}

	// Stale lists: products the run produced nothing for. Pinned entries
	// survive when manual curation is preserved; everything else goes.
	for productID, list := range existing {
		if _, ok := written[productID]; ok {
			continue
		}
		manual := manualEntries(list)
		if s.preserveManual && len(manual) > 0 {
			if err := s.batchSet(batch, StoredList{
				ProductID: productID,
				Channel:   channel,
				Entries:   manual,
				RunID:     runID,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
			continue
		}
		if err := batch.Delete(relKey(channel, productID)); err != nil {
			return fmt.Errorf("delete stale list %s: %w", productID, err)
		}
	}

	if err := batch.Flush(); err != nil {
		return fmt.Errorf("commit channel %s: %w", channel, err)
	}
	return nil
}

// SetManual implements Store.
func (s *BadgerStore) SetManual(ctx context.Context, channel, productID string, relatedIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	current, err := s.Get(ctx, channel, productID)
	if errors.Is(err, ErrNotFound) {
		current = &StoredList{ProductID: productID, Channel: channel}
	} else if err != nil {
		return err
	}

	entries := make([]Entry, 0, len(relatedIDs)+len(current.Entries))
	seen := make(map[string]struct{}, len(relatedIDs))
	for _, id := range relatedIDs {
		if id == productID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		entries = append(entries, Entry{ProductID: id, Manual: true})
	}
	for _, e := range current.Entries {
		if e.Manual {
			continue
		}
		if _, dup := seen[e.ProductID]; dup {
			continue
		}
		seen[e.ProductID] = struct{}{}
		entries = append(entries, e)
	}

	current.Entries = entries
	current.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshal relation list: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(relKey(channel, productID), data)
	})
}

// mergeEntries combines pinned entries with mined relations. Pinned
// entries always survive (even past the cap, per the curation contract);
// mined entries are deduplicated against them and fill the cap.
func (s *BadgerStore) mergeEntries(manual []Entry, relations []relate.Relation, maxRelated int) []Entry {
	entries := make([]Entry, 0, maxRelated+len(manual))
	seen := make(map[string]struct{}, len(manual))

	if s.preserveManual {
		for _, e := range manual {
			seen[e.ProductID] = struct{}{}
			entries = append(entries, e)
		}
	}

	for _, r := range relations {
		if len(entries) >= maxRelated {
			break
		}
		if _, dup := seen[r.ProductID]; dup {
			continue
		}
		seen[r.ProductID] = struct{}{}
		entries = append(entries, Entry{ProductID: r.ProductID, Support: r.Support})
	}
	return entries
}

// batchSet marshals and queues one list write.
func (s *BadgerStore) batchSet(batch *badger.WriteBatch, list StoredList) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal relation list %s: %w", list.ProductID, err)
	}
	if err := batch.Set(relKey(list.Channel, list.ProductID), data); err != nil {
		return fmt.Errorf("set relation list %s: %w", list.ProductID, err)
	}
	return nil
}

// channelLists reads every stored list in a channel, keyed by product ID.
func (s *BadgerStore) channelLists(channel string) (map[string]*StoredList, error) {
	lists := make(map[string]*StoredList)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = channelPrefix(channel)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var list StoredList
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &list)
			}); err != nil {
				return fmt.Errorf("read relation list: %w", err)
			}
			lists[list.ProductID] = &list
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lists, nil
}

// manualEntries extracts the pinned entries of a stored list.
func manualEntries(list *StoredList) []Entry {
	if list == nil {
		return nil
	}
	var manual []Entry
	for _, e := range list.Entries {
		if e.Manual {
			manual = append(manual, e)
		}
	}
	return manual
}
