// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// keySep separates the collection name from the encoded _id in document keys.
const keySep = 0x00

// BadgerStore keeps BSON documents in BadgerDB under <collection>\x00<_id>.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a BadgerDB at path. An empty path opens an in-memory database.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already opened database. Close closes db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// DropDatabase removes every document.
func (s *BadgerStore) DropDatabase(ctx context.Context) error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("drop badger store: %w", err)
	}
	return nil
}

// InsertMany stores docs, rejecting documents whose _id already exists in
// the collection. Transactions that grow too large are committed and continued.
func (s *BadgerStore) InsertMany(ctx context.Context, collection string, docs []bson.D) (InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return InsertResult{}, err
	}

	var out InsertResult
	txn := s.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	for i, doc := range docs {
		doc, id := withID(doc)
		key, err := documentKey(collection, id)
		if err != nil {
			out.reject(i, err.Error())
			continue
		}

		_, err = txn.Get(key)
		switch {
		case err == nil:
			out.reject(i, fmt.Sprintf("duplicate key: %s._id %v", collection, id))
			continue
		case !errors.Is(err, badger.ErrKeyNotFound):
			return InsertResult{}, fmt.Errorf("read %s: %w", collection, err)
		}

		val, err := bson.Marshal(doc)
		if err != nil {
			out.reject(i, err.Error())
			continue
		}

		err = txn.Set(key, val)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err = txn.Commit(); err != nil {
				return InsertResult{}, fmt.Errorf("commit %s: %w", collection, err)
			}
			txn = s.db.NewTransaction(true)
			err = txn.Set(key, val)
		}
		if err != nil {
			return InsertResult{}, fmt.Errorf("write %s: %w", collection, err)
		}
		out.Inserted++
	}

	if err := txn.Commit(); err != nil {
		return InsertResult{}, fmt.Errorf("commit %s: %w", collection, err)
	}
	return out, nil
}

func (r *InsertResult) reject(index int, msg string) {
	r.Failed++
	r.Errors = append(r.Errors, DocumentError{Index: index, Message: msg})
}

// Count returns the number of documents stored under collection.
func (s *BadgerStore) Count(ctx context.Context, collection string) (int64, error) {
	prefix := collectionPrefix(collection)
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Collections lists the distinct collection names, in key order.
func (s *BadgerStore) Collections(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var last []byte
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			idx := bytes.IndexByte(key, keySep)
			if idx < 0 {
				continue
			}
			name := key[:idx]
			if last != nil && bytes.Equal(name, last) {
				continue
			}
			last = append(last[:0], name...)
			names = append(names, string(name))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

// Find returns the document stored under collection with the given _id.
func (s *BadgerStore) Find(ctx context.Context, collection string, id any) (bson.D, error) {
	key, err := documentKey(collection, id)
	if err != nil {
		return nil, err
	}

	var doc bson.D
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return bson.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	return doc, nil
}

// Close closes the database.
func (s *BadgerStore) Close(ctx context.Context) error {
	return s.db.Close()
}

func collectionPrefix(collection string) []byte {
	prefix := make([]byte, 0, len(collection)+1)
	prefix = append(prefix, collection...)
	return append(prefix, keySep)
}

// documentKey encodes id with its BSON type byte so ids of different types never collide.
func documentKey(collection string, id any) ([]byte, error) {
	t, data, err := bson.MarshalValue(id)
	if err != nil {
		return nil, fmt.Errorf("encode _id: %w", err)
	}
	key := collectionPrefix(collection)
	key = append(key, byte(t))
	return append(key, data...), nil
}
