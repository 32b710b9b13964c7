// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/tomtom215/cbd-importer/internal/logging"
)

// MongoStore writes into one MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	name   string
}

// ConnectMongo connects to uri and pings the primary before returning.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	logging.Info().Str("database", database).Msg("Connected to MongoDB")

	return &MongoStore{
		client: client,
		db:     client.Database(database),
		name:   database,
	}, nil
}

// DropDatabase drops the database if the server lists it.
func (s *MongoStore) DropDatabase(ctx context.Context) error {
	names, err := s.client.ListDatabaseNames(ctx, bson.D{{Key: "name", Value: s.name}})
	if err != nil {
		return fmt.Errorf("list databases: %w", err)
	}
	if len(names) == 0 {
		return nil
	}

	logging.Warn().Str("database", s.name).Msg("Dropping existing database")
	if err := s.db.Drop(ctx); err != nil {
		return fmt.Errorf("drop database %s: %w", s.name, err)
	}
	return nil
}

// InsertMany performs an unordered bulk insert. Per-document write errors are
// reported in the result; only transport and server failures return an error.
func (s *MongoStore) InsertMany(ctx context.Context, collection string, docs []bson.D) (InsertResult, error) {
	if len(docs) == 0 {
		return InsertResult{}, nil
	}

	res, err := s.db.Collection(collection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return InsertResult{Inserted: len(res.InsertedIDs)}, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || len(bwe.WriteErrors) == 0 || bwe.WriteConcernError != nil {
		return InsertResult{}, fmt.Errorf("insert into %s: %w", collection, err)
	}

	out := InsertResult{
		Failed: len(bwe.WriteErrors),
		Errors: make([]DocumentError, 0, len(bwe.WriteErrors)),
	}
	out.Inserted = len(docs) - out.Failed
	for _, we := range bwe.WriteErrors {
		out.Errors = append(out.Errors, DocumentError{
			Index:   we.Index,
			Code:    we.Code,
			Message: we.Message,
		})
	}
	return out, nil
}

// Count returns the number of documents in collection.
func (s *MongoStore) Count(ctx context.Context, collection string) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Collections lists the collection names of the database.
func (s *MongoStore) Collections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}
