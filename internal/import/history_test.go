// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package dataimport

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func sampleJob() *Job {
	return &Job{
		ID:         "job-1",
		Status:     JobFailed,
		DataDir:    "/data",
		TotalFiles: 2,
		Files: []FileResult{
			{File: "users.json.gz", Collection: "users", Decoded: 10, Inserted: 10, Batches: 1},
			{File: "events.json.gz", Collection: "events", Decoded: 1, Error: "decode failed"},
		},
		Error:      "1 of 2 files failed",
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 2, 3, 5, 5, 0, time.UTC),
	}
}

func TestBadgerHistory(t *testing.T) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	defer db.Close()

	h := NewBadgerHistory(db)
	ctx := context.Background()

	last, err := h.Last(ctx)
	if err != nil || last != nil {
		t.Fatalf("Last() on empty db = %+v, %v; want nil", last, err)
	}

	if err := h.Save(ctx, sampleJob()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	last, err = h.Last(ctx)
	if err != nil {
		t.Fatalf("Last() error = %v", err)
	}
	if last.ID != "job-1" || last.Status != JobFailed || len(last.Files) != 2 {
		t.Errorf("Last() = %+v", last)
	}
	if !last.StartedAt.Equal(sampleJob().StartedAt) || last.Duration() != time.Minute {
		t.Errorf("times not preserved: %v -> %v", last.StartedAt, last.FinishedAt)
	}
	if got := last.FailedFiles(); len(got) != 1 || got[0] != "events.json.gz" {
		t.Errorf("FailedFiles() = %v", got)
	}
}

func TestOpenBadgerHistory(t *testing.T) {
	h, db, err := OpenBadgerHistory(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadgerHistory() error = %v", err)
	}
	defer db.Close()

	if err := h.Save(context.Background(), sampleJob()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestMemoryHistory_ReturnsCopies(t *testing.T) {
	h := NewMemoryHistory()
	job := sampleJob()
	if err := h.Save(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	job.Files[0].Inserted = 0

	last, _ := h.Last(context.Background())
	if last.Files[0].Inserted != 10 {
		t.Error("Save() must store a copy")
	}
	last.Files[0].Inserted = 1
	again, _ := h.Last(context.Background())
	if again.Files[0].Inserted != 10 {
		t.Error("Last() must return a copy")
	}
}
