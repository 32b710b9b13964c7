// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package dataimport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const (
	// lastJobKey is the BadgerDB key holding the summary of the last run.
	lastJobKey = "import:last_job"
)

// History keeps the summary of the most recent finished run.
type History interface {
	// Save stores job as the most recent run.
	Save(ctx context.Context, job *Job) error

	// Last returns the most recent run, or nil if none was saved.
	Last(ctx context.Context) (*Job, error)
}

// BadgerHistory implements History using BadgerDB, so the status endpoint
// still reports the last run after a restart.
type BadgerHistory struct {
	db *badger.DB
}

// NewBadgerHistory creates a history backed by the provided BadgerDB instance.
func NewBadgerHistory(db *badger.DB) *BadgerHistory {
	return &BadgerHistory{db: db}
}

// OpenBadgerHistory opens a BadgerDB at path for job history.
// The caller owns the returned database and must close it.
func OpenBadgerHistory(path string) (*BadgerHistory, *badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open badger db for import history: %w", err)
	}
	return NewBadgerHistory(db), db, nil
}

// Save persists the job summary.
func (h *BadgerHistory) Save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	return h.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(lastJobKey), data)
	})
}

// Last retrieves the saved job summary. Returns nil, nil if nothing was saved.
func (h *BadgerHistory) Last(ctx context.Context) (*Job, error) {
	var job *Job

	err := h.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastJobKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			job = &Job{}
			return json.Unmarshal(val, job)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load last job: %w", err)
	}
	return job, nil
}

// MemoryHistory implements History in memory.
type MemoryHistory struct {
	mu  sync.RWMutex
	job *Job
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

// Save stores a copy of job.
func (h *MemoryHistory) Save(_ context.Context, job *Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job = job.Clone()
	return nil
}

// Last returns a copy of the stored job.
func (h *MemoryHistory) Last(_ context.Context) (*Job, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.job.Clone(), nil
}
