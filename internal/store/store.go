// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

// Package store provides the document database the importer loads into.
//
// Two backends implement Store:
//   - MongoStore: the production target (MongoDB via mongo-driver v2)
//   - BadgerStore: an embedded BSON document store for single-node use and tests
//
// Bulk inserts are unordered. A batch reports how many documents were
// written and which ones were rejected instead of failing as a whole, so
// callers decide whether a partially rejected batch is fatal.
package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/tomtom215/cbd-importer/internal/config"
)

// Store is a connection to one target database.
type Store interface {
	// DropDatabase removes the target database and every collection in it.
	DropDatabase(ctx context.Context) error

	// InsertMany writes docs to collection without stopping at the first
	// rejected document. A non-nil error means the store itself failed and
	// the result is not meaningful.
	InsertMany(ctx context.Context, collection string, docs []bson.D) (InsertResult, error)

	// Count returns the number of documents in collection.
	Count(ctx context.Context, collection string) (int64, error)

	// Collections lists the collections of the target database.
	Collections(ctx context.Context) ([]string, error)

	// Close releases the connection.
	Close(ctx context.Context) error
}

// Connector opens a new Store connection. The importer opens one per run.
type Connector func(ctx context.Context) (Store, error)

// InsertResult summarises one bulk insert.
type InsertResult struct {
	Inserted int
	Failed   int
	Errors   []DocumentError
}

// DocumentError describes one rejected document of a batch.
type DocumentError struct {
	Index   int    `json:"index"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// NewConnector returns the Connector for the configured driver.
func NewConnector(cfg config.StoreConfig) (Connector, error) {
	switch cfg.Driver {
	case "mongo":
		return func(ctx context.Context) (Store, error) {
			return ConnectMongo(ctx, cfg.MongoURI, cfg.Database)
		}, nil
	case "badger":
		return func(ctx context.Context) (Store, error) {
			return OpenBadger(cfg.BadgerPath)
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// withID returns doc with an _id field, generating an ObjectID when missing.
// The _id of the returned document is also returned.
func withID(doc bson.D) (bson.D, any) {
	for _, e := range doc {
		if e.Key == "_id" {
			return doc, e.Value
		}
	}
	id := bson.NewObjectID()
	out := make(bson.D, 0, len(doc)+1)
	out = append(out, bson.E{Key: "_id", Value: id})
	out = append(out, doc...)
	return out, id
}
