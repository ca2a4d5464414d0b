// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache stores per-file lint results in BadgerDB.
//
// An entry is keyed by the rule set fingerprint, the resolver options,
// the file path and the file content hash, so any change to the rules,
// the suppression settings or the file misses the cache. Entries expire
// after Config.TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/apexlint/services/lint/scanner"
	"github.com/AleutianAI/apexlint/services/lint/source"
)

const keyPrefix = "lint/v1/"

// Entry is the cached outcome of scanning and resolving one file.
type Entry struct {
	Matches    []scanner.Match `json:"matches"`
	Suppressed []scanner.Match `json:"suppressed"`
}

// Key identifies a cached result.
type Key []byte

// NewKey builds the key for f scanned with the given rule set
// fingerprint and resolver settings.
func NewKey(fingerprint, settings string, f *source.File) Key {
	d := xxhash.New()
	_, _ = d.WriteString(fingerprint)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(settings)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(f.Path())
	return Key(keyPrefix + strconv.FormatUint(d.Sum64(), 16) + "/" + strconv.FormatUint(f.Hash(), 16))
}

// Cache is a BadgerDB-backed result cache.
//
// Thread Safety: Safe for concurrent use.
type Cache struct {
	db       *badger.DB
	gc       *gcRunner
	ttl      time.Duration
	inMemory bool
}

// Open opens the cache described by cfg.
//
// Description:
//
//	Opens BadgerDB in cfg.Dir, or in memory, and starts value log GC
//	for persistent caches when GCInterval is set.
//
// Outputs:
//
//	*Cache - The cache. Caller must call Close.
//	error - Non-nil if the database cannot be opened.
func Open(cfg Config) (*Cache, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	c := &Cache{db: db, ttl: cfg.TTL, inMemory: cfg.InMemory}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		c.gc = runner
		runner.start()
	}
	return c, nil
}

// Get returns the entry for key. The boolean is false on a miss.
func (c *Cache) Get(ctx context.Context, key Key) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}

	var entry Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache get: %w", err)
	}
	return entry, true, nil
}

// Put stores entry under key.
func (c *Cache) Put(ctx context.Context, key Key, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, val)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Len returns the number of live entries.
func (c *Cache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Purge deletes every entry.
func (c *Cache) Purge() error {
	return c.db.DropPrefix([]byte(keyPrefix))
}

// InMemory returns true if the cache is not persisted.
func (c *Cache) InMemory() bool {
	return c.inMemory
}

// Close stops GC and closes the database.
func (c *Cache) Close() error {
	if c.gc != nil {
		c.gc.stop()
	}
	return c.db.Close()
}
