// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package dataimport

// Event names published during a run.
const (
	EventStart    = "import:start"
	EventFile     = "import:file"
	EventProgress = "import:progress"
	EventDone     = "import:done"
	EventError    = "import:error"
)

// EventNames lists the run events in the order a client sees them.
var EventNames = []string{EventStart, EventFile, EventProgress, EventDone, EventError}

// DoneMessage is the message of the import:done event.
const DoneMessage = "Import completed"

// Broadcaster delivers events to whoever is listening right now.
// Publish must not block on slow listeners and never replays past events.
type Broadcaster interface {
	Publish(event string, data any)
}

// StartEvent is the payload of import:start.
type StartEvent struct {
	TotalFiles int `json:"totalFiles"`
}

// FileEvent is the payload of import:file. Current is 1-based.
type FileEvent struct {
	File       string `json:"file"`
	Collection string `json:"collection"`
	Current    int    `json:"current"`
	Total      int    `json:"total"`
}

// ProgressEvent is the payload of import:progress. Count is cumulative per collection.
type ProgressEvent struct {
	Collection string `json:"collection"`
	Count      int64  `json:"count"`
	Failed     int64  `json:"failed,omitempty"`
}

// DoneEvent is the payload of import:done.
type DoneEvent struct {
	Message     string   `json:"message"`
	JobID       string   `json:"job_id"`
	Collections []string `json:"collections"`
}

// ErrorEvent is the payload of import:error.
type ErrorEvent struct {
	Error       string   `json:"error"`
	JobID       string   `json:"job_id,omitempty"`
	File        string   `json:"file,omitempty"`
	Collection  string   `json:"collection,omitempty"`
	FailedFiles []string `json:"failed_files,omitempty"`
}

// Fanout publishes every event to each of its broadcasters in order.
type Fanout []Broadcaster

// Publish implements Broadcaster.
func (f Fanout) Publish(event string, data any) {
	for _, b := range f {
		if b != nil {
			b.Publish(event, data)
		}
	}
}

// NopBroadcaster drops every event.
type NopBroadcaster struct{}

// Publish implements Broadcaster.
func (NopBroadcaster) Publish(string, any) {}
