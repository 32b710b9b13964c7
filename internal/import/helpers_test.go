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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/tomtom215/cbd-importer/internal/logging"
	"github.com/tomtom215/cbd-importer/internal/store"
)

func init() {
	logging.SetLevelString("disabled")
}

// fakeStore is an in-memory store.Store that records every call.
type fakeStore struct {
	mu          sync.Mutex
	collections map[string][]bson.D
	order       []string
	writes      map[string]int
	batchSizes  []int
	dropped     int
	closed      int

	dropErr   error
	insertErr map[string]error
	// reject returns true for documents the store refuses individually.
	reject func(collection string, doc bson.D) bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections: make(map[string][]bson.D),
		writes:      make(map[string]int),
		insertErr:   make(map[string]error),
	}
}

func (s *fakeStore) connector() store.Connector {
	return func(ctx context.Context) (store.Store, error) {
		return s, nil
	}
}

func (s *fakeStore) DropDatabase(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropErr != nil {
		return s.dropErr
	}
	s.dropped++
	s.collections = make(map[string][]bson.D)
	s.order = nil
	return nil
}

func (s *fakeStore) InsertMany(ctx context.Context, collection string, docs []bson.D) (store.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes[collection]++
	s.batchSizes = append(s.batchSizes, len(docs))
	if err := s.insertErr[collection]; err != nil {
		return store.InsertResult{}, err
	}

	if _, ok := s.collections[collection]; !ok {
		s.order = append(s.order, collection)
	}

	var res store.InsertResult
	for i, d := range docs {
		if s.reject != nil && s.reject(collection, d) {
			res.Failed++
			res.Errors = append(res.Errors, store.DocumentError{Index: i, Code: 11000, Message: "E11000 duplicate key error"})
			continue
		}
		s.collections[collection] = append(s.collections[collection], d)
		res.Inserted++
	}
	return res, nil
}

func (s *fakeStore) Count(ctx context.Context, collection string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.collections[collection])), nil
}

func (s *fakeStore) Collections(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...), nil
}

func (s *fakeStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeStore) count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection])
}

// published is one event seen by recordingBroadcaster.
type published struct {
	Event string
	Data  any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBroadcaster) Publish(event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{Event: event, Data: data})
}

func (b *recordingBroadcaster) all() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.events...)
}

func (b *recordingBroadcaster) named(event string) []published {
	var out []published
	for _, e := range b.all() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// sliceSource is a RecordSource over a fixed slice, optionally failing at index failAt.
type sliceSource struct {
	records []Record
	pos     int
	failAt  int
}

func newSliceSource(n int) *sliceSource {
	records := make([]Record, n)
	for i := range records {
		records[i] = bson.D{{Key: "n", Value: int32(i)}}
	}
	return &sliceSource{records: records, failAt: -1}
}

func (s *sliceSource) Next() (Record, error) {
	if s.pos == s.failAt {
		return nil, &FileError{File: "test", Record: s.pos, Err: fmt.Errorf("%w: bad record", ErrDecode)}
	}
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

// jsonArray builds a JSON array of n documents {"_id":{"$oid":...},"i":k}.
func jsonArray(n int) string {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",\n")
		}
		fmt.Fprintf(&b, `{"_id":{"$oid":"%s"},"i":%d}`, bson.NewObjectID().Hex(), i)
	}
	b.WriteString("]")
	return b.String()
}

// writeGzip writes content gzip-compressed to dir/name.
func writeGzip(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip %s: %v", name, err)
	}
	return p
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func isFileError(err error) bool {
	var fe *FileError
	return errors.As(err, &fe)
}
