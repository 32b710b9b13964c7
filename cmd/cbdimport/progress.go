// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package main

import (
	dataimport "github.com/tomtom215/cbd-importer/internal/import"
	"github.com/tomtom215/cbd-importer/internal/logging"
)

// progressLogger writes import events to the log, standing in for the
// WebSocket channel when running from the command line.
type progressLogger struct{}

// Publish implements dataimport.Broadcaster.
func (progressLogger) Publish(event string, data any) {
	switch ev := data.(type) {
	case dataimport.StartEvent:
		logging.Info().Int("total_files", ev.TotalFiles).Msg("Import started")
	case dataimport.FileEvent:
		logging.Info().
			Int("current", ev.Current).
			Int("total", ev.Total).
			Str("file", ev.File).
			Str("collection", ev.Collection).
			Msg("Importing file")
	case dataimport.ProgressEvent:
		logging.Debug().
			Str("collection", ev.Collection).
			Int64("count", ev.Count).
			Int64("failed", ev.Failed).
			Msg("Batch written")
	case dataimport.DoneEvent:
		logging.Info().Strs("collections", ev.Collections).Msg(ev.Message)
	case dataimport.ErrorEvent:
		logging.Error().
			Str("file", ev.File).
			Strs("failed_files", ev.FailedFiles).
			Msg(ev.Error)
	default:
		logging.Info().Str("event", event).Interface("data", data).Msg("Import event")
	}
}
