// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

// Command cbdimport reloads the CBD events database from the command line,
// without the HTTP server.
//
//	cbdimport import --data-dir ./data --batch-size 1000
//	cbdimport token --user admin
//
// Settings come from the same config.yaml and environment variables as
// the server; flags override them.
package main

func main() {
	Execute()
}
