// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package dataimport

import (
	"errors"
	"fmt"
)

// Fatal errors abort a run before any file is processed. File-level errors
// (ErrDecode, ErrBatchWrite) abort only the file they occurred in.
var (
	// ErrConnection means the store could not be reached at the start of a run.
	ErrConnection = errors.New("store connection failed")

	// ErrDirectoryNotFound means the data directory is missing or not a directory.
	ErrDirectoryNotFound = errors.New("data directory not found")

	// ErrDatasetReset means the target database could not be dropped.
	ErrDatasetReset = errors.New("dataset reset failed")

	// ErrDecode means a source file is not valid compressed JSON.
	ErrDecode = errors.New("decode failed")

	// ErrBatchWrite means the store rejected a whole batch.
	ErrBatchWrite = errors.New("batch write failed")

	// ErrImportRunning is returned by Start while another run is active.
	ErrImportRunning = errors.New("import already in progress")
)

// FileError is a file-level failure with the source it belongs to.
type FileError struct {
	File       string
	Collection string

	// Record is the zero-based index of the offending record, or -1.
	Record int

	Err error
}

func (e *FileError) Error() string {
	if e.Record >= 0 {
		return fmt.Sprintf("%s (record %d): %v", e.File, e.Record, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// IsFileLevel reports whether err aborts only the current file.
func IsFileLevel(err error) bool {
	return errors.Is(err, ErrDecode) || errors.Is(err, ErrBatchWrite)
}
