// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

// Package middleware provides the HTTP middleware used by the API router:
// request ids wired into the logging context, Prometheus instrumentation,
// access logging with slow-request warnings, and gzip response compression.
//
// Every middleware has the func(http.Handler) http.Handler shape so it can be
// passed straight to chi's Use. The response wrapper keeps http.Hijacker
// working, which the /ws upgrade needs.
package middleware
