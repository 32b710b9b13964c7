// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package dataimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tomtom215/cbd-importer/internal/logging"
	"github.com/tomtom215/cbd-importer/internal/metrics"
	"github.com/tomtom215/cbd-importer/internal/store"
)

// DefaultBatchSize is the number of records per bulk insert when none is configured.
const DefaultBatchSize = 500

// InsertStats counts the work done for one collection.
type InsertStats struct {
	Decoded  int64
	Inserted int64
	Failed   int64
	Batches  int
}

// BatchInserter buffers records and writes them in bounded bulk inserts.
type BatchInserter struct {
	store       store.Store
	broadcaster Broadcaster
	batchSize   int
}

// NewBatchInserter creates an inserter writing to s. A batchSize below 1 uses DefaultBatchSize.
func NewBatchInserter(s store.Store, b Broadcaster, batchSize int) *BatchInserter {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if b == nil {
		b = NopBroadcaster{}
	}
	return &BatchInserter{store: s, broadcaster: b, batchSize: batchSize}
}

// Insert pulls records from src until io.EOF and writes them to collection.
// A full buffer is flushed before the next record is requested, and the
// final partial buffer is flushed at end of stream. Documents rejected
// individually are counted and skipped; a batch rejected as a whole, or a
// decode error, stops the collection and is returned with the stats so far.
func (bi *BatchInserter) Insert(ctx context.Context, collection string, src RecordSource) (InsertStats, error) {
	var stats InsertStats
	buf := make([]Record, 0, bi.batchSize)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}

		stats.Decoded++
		buf = append(buf, rec)
		if len(buf) < bi.batchSize {
			continue
		}

		if err := bi.flush(ctx, collection, buf, &stats); err != nil {
			return stats, err
		}
		buf = make([]Record, 0, bi.batchSize)
	}

	if len(buf) > 0 {
		if err := bi.flush(ctx, collection, buf, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (bi *BatchInserter) flush(ctx context.Context, collection string, batch []Record, stats *InsertStats) error {
	start := time.Now()
	res, err := bi.store.InsertMany(ctx, collection, batch)
	stats.Batches++
	if err != nil {
		metrics.RecordBatch(collection, 0, len(batch), time.Since(start))
		stats.Failed += int64(len(batch))
		return fmt.Errorf("%w: %s: %w", ErrBatchWrite, collection, err)
	}
	metrics.RecordBatch(collection, res.Inserted, res.Failed, time.Since(start))

	stats.Inserted += int64(res.Inserted)
	stats.Failed += int64(res.Failed)

	if res.Failed > 0 {
		ev := logging.Warn().
			Str("collection", collection).
			Int("batch_size", len(batch)).
			Int("failed", res.Failed)
		if len(res.Errors) > 0 {
			ev = ev.Int("first_index", res.Errors[0].Index).Str("first_error", res.Errors[0].Message)
		}
		ev.Msg("Documents rejected in batch")
	}

	if res.Inserted == 0 && res.Failed > 0 {
		msg := "all documents rejected"
		if len(res.Errors) > 0 {
			msg = fmt.Sprintf("all %d documents rejected: %s", len(batch), res.Errors[0].Message)
		}
		return fmt.Errorf("%w: %s: %s", ErrBatchWrite, collection, msg)
	}

	bi.broadcaster.Publish(EventProgress, ProgressEvent{
		Collection: collection,
		Count:      stats.Inserted,
		Failed:     stats.Failed,
	})
	return nil
}
