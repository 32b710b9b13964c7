// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package middleware

import (
	"net/http"
	"time"

	"github.com/tomtom215/cbd-importer/internal/logging"
)

// DefaultSlowThreshold is the duration above which a request is logged at
// warn level.
const DefaultSlowThreshold = time.Second

// AccessLog logs one line per request through the context logger. Requests
// slower than slow are logged at warn level; slow <= 0 uses
// DefaultSlowThreshold. WebSocket sessions are logged when they end and are
// never reported as slow.
func AccessLog(slow time.Duration) func(http.Handler) http.Handler {
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			logger := logging.Ctx(r.Context())
			event := logger.Debug()
			switch {
			case rec.statusCode >= http.StatusInternalServerError:
				event = logger.Error()
			case rec.statusCode != http.StatusSwitchingProtocols && duration > slow:
				event = logger.Warn().Dur("threshold", slow)
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.statusCode).
				Int("bytes", rec.bytes).
				Dur("duration", duration).
				Str("remote_addr", r.RemoteAddr).
				Msg("http request")
		})
	}
}
