// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

// Package api serves the HTTP surface of the importer with a chi router.
//
// Routes:
//
//	POST /api/populate         start an import run (202, 409 while one runs)
//	GET  /api/populate/status  current or last job summary
//	GET  /ws                   progress channel
//	GET  /api/health/live      liveness probe
//	GET  /api/health/ready     readiness probe (store, event bus)
//	GET  /metrics              Prometheus metrics
//
// JSON endpoints answer with the APIResponse envelope.
package api
