// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

/*
Package services adapts the importer's components to suture's
Serve(ctx) error lifecycle.

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server; ListenAndServe runs in a goroutine
  - Shutdown drains connections within the configured timeout

WebSocket Hub (HubService):
  - Delegates to websocket.Hub.RunWithContext
  - Closes every progress client on shutdown

Import (ImportService):
  - Owns the context that background import runs are bound to, so a run
    outlives the HTTP request that triggered it but not the process
  - Optionally starts one run when the service first comes up
  - Waits for the active run to drain on shutdown

Event Publisher (PublisherService):
  - Keeps the NATS publisher open while the tree runs
  - Closes it on shutdown

Every wrapper implements fmt.Stringer so suture can name it in log lines.
*/
package services
