// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package sink

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/cando-sh/cando/cando"
	badger "github.com/dgraph-io/badger/v4"
)

// journalKeyPrefix namespaces flushed records in the Badger keyspace so a
// BadgerSink can share a database with other callers.
var journalKeyPrefix = []byte("cando/journal/")

// BadgerSink is a Sink backed by an embedded Badger key-value store. Each
// flushed Change is stored under a monotonically increasing key so ReadAll
// can iterate them back in write order; an unflushed batch lives only in an
// in-memory buffer and Clear simply discards it without ever touching the
// database.
type BadgerSink[GranteeId, ActionId comparable] struct {
	db      *badger.DB
	next    uint64
	pending []cando.Change[GranteeId, ActionId]
}

// OpenBadgerSink opens (creating if necessary) a Badger database at dir.
func OpenBadgerSink[G, A comparable](dir string) (*BadgerSink[G, A], error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("sink: open badger store: %w", err)
	}

	next, err := nextJournalKey(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BadgerSink[G, A]{db: db, next: next}, nil
}

func nextJournalKey(db *badger.DB) (uint64, error) {
	var next uint64
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Reverse: true, Prefix: journalKeyPrefix})
		defer it.Close()

		seekTo := make([]byte, len(journalKeyPrefix)+8)
		copy(seekTo, journalKeyPrefix)
		for i := range seekTo[len(journalKeyPrefix):] {
			seekTo[len(journalKeyPrefix)+i] = 0xff
		}

		it.Seek(seekTo)
		if !it.ValidForPrefix(journalKeyPrefix) {
			return nil
		}
		key := it.Item().Key()
		next = binary.BigEndian.Uint64(key[len(journalKeyPrefix):]) + 1
		return nil
	})
	return next, err
}

// Close closes the underlying Badger database.
func (s *BadgerSink[G, A]) Close() error {
	return s.db.Close()
}

func journalKey(seq uint64) []byte {
	key := make([]byte, len(journalKeyPrefix)+8)
	copy(key, journalKeyPrefix)
	binary.BigEndian.PutUint64(key[len(journalKeyPrefix):], seq)
	return key
}

// ReadAll returns every change previously committed by Flush, in write
// order.
func (s *BadgerSink[G, A]) ReadAll(_ context.Context) ([]cando.Change[G, A], error) {
	var out []cando.Change[G, A]
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: journalKeyPrefix})
		defer it.Close()

		for it.Seek(journalKeyPrefix); it.ValidForPrefix(journalKeyPrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var change cando.Change[G, A]
				if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&change); err != nil {
					return err
				}
				out = append(out, change)
				return nil
			})
			if err != nil {
				return fmt.Errorf("sink: decode badger record: %w", err)
			}
		}
		return nil
	})
	return out, err
}

// Write buffers change in memory; it is not durable until Flush succeeds.
func (s *BadgerSink[G, A]) Write(_ context.Context, change cando.Change[G, A]) error {
	s.pending = append(s.pending, change)
	return nil
}

// Flush commits every buffered change to Badger in a single transaction.
func (s *BadgerSink[G, A]) Flush(_ context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, change := range s.pending {
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(change); err != nil {
				return err
			}
			if err := txn.Set(journalKey(s.next), buf.Bytes()); err != nil {
				return err
			}
			s.next++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFlush, err)
	}

	s.pending = nil
	return nil
}

// Clear discards the in-memory batch without touching the database.
func (s *BadgerSink[G, A]) Clear(_ context.Context) error {
	s.pending = nil
	return nil
}

// Rewrite replaces the entire key space with changes in one durable step,
// implementing sink.Compactor.
func (s *BadgerSink[G, A]) Rewrite(_ context.Context, changes []cando.Change[G, A]) error {
	if err := s.db.DropPrefix(journalKeyPrefix); err != nil {
		return fmt.Errorf("%w: %v", ErrFlush, err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for i, change := range changes {
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(change); err != nil {
				return err
			}
			if err := txn.Set(journalKey(uint64(i)), buf.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFlush, err)
	}

	s.next = uint64(len(changes))
	s.pending = nil
	return nil
}
