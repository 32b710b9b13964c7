// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

/*
Package dataimport loads compressed JSON dumps into the document store.

A run replaces the whole target database: the Coordinator connects to the
store, lists the data directory, drops the database and then imports every
source sequentially, one collection per file:

	users.json.gz   -> collection "users"
	events.json.gz  -> collection "events"
	dump.zip        -> one collection per cbd.<name>.json entry

Pipeline per source:

	ListArchives / Sources   directory listing order, optional sort
	OpenStream               gzip + streaming Extended JSON decode, one record at a time
	BatchInserter.Insert     bounded unordered bulk inserts, import:progress after each

Events are published through a Broadcaster (WebSocket hub, NATS or both):

	import:start    {totalFiles}
	import:file     {file, collection, current, total}
	import:progress {collection, count, failed}
	import:done     {message, job_id, collections}
	import:error    {error, file, collection, failed_files}

Error handling:
  - ErrConnection, ErrDirectoryNotFound, ErrDatasetReset abort the run
  - ErrDecode and ErrBatchWrite abort only the current file; the run goes on
    and ends with a summary import:error listing the failed files
  - nothing is retried and nothing already written is rolled back

Only one run is active at a time; Start returns ErrImportRunning otherwise.
*/
package dataimport
