// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package dataimport

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Record is one decoded document. Field order follows the source.
type Record = bson.D

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	JobIdle      JobStatus = "idle"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// FileResult holds the outcome of importing one source.
type FileResult struct {
	File       string `json:"file"`
	Collection string `json:"collection"`

	// Decoded counts records read from the source; Inserted + Failed == Decoded
	// unless the file was aborted.
	Decoded  int64 `json:"decoded"`
	Inserted int64 `json:"inserted"`
	Failed   int64 `json:"failed"`
	Batches  int   `json:"batches"`

	Error string `json:"error,omitempty"`
}

// Job describes one import run.
type Job struct {
	ID          string       `json:"job_id"`
	Status      JobStatus    `json:"status"`
	DataDir     string       `json:"data_dir"`
	TotalFiles  int          `json:"total_files"`
	CurrentFile int          `json:"current_file"`
	Files       []FileResult `json:"files"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Files = slices.Clone(j.Files)
	return &c
}

// Duration returns how long the job ran, or has been running.
func (j *Job) Duration() time.Duration {
	if j.FinishedAt.IsZero() {
		return time.Since(j.StartedAt)
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// FailedFiles lists the sources that were aborted.
func (j *Job) FailedFiles() []string {
	var out []string
	for _, f := range j.Files {
		if f.Error != "" {
			out = append(out, f.File)
		}
	}
	return out
}

// Collections lists the collections that imported without a file-level error.
func (j *Job) Collections() []string {
	out := make([]string, 0, len(j.Files))
	for _, f := range j.Files {
		if f.Error == "" {
			out = append(out, f.Collection)
		}
	}
	return out
}

// Inserted sums the inserted documents over all files.
func (j *Job) Inserted() int64 {
	var n int64
	for _, f := range j.Files {
		n += f.Inserted
	}
	return n
}
