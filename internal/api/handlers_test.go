// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package api

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/cbd-importer/internal/config"
	dataimport "github.com/tomtom215/cbd-importer/internal/import"
	ws "github.com/tomtom215/cbd-importer/internal/websocket"
)

// failingImporter returns errors from every call.
type failingImporter struct {
	err error
}

func (f failingImporter) Trigger() (*dataimport.Task, error) { return nil, f.err }

func (f failingImporter) Status(context.Context) (*dataimport.Job, error) { return nil, f.err }

func TestPopulate_InternalError(t *testing.T) {
	h := NewHandler(&config.Config{}, failingImporter{err: errors.New("boom")}, nil)

	for name, fn := range map[string]http.HandlerFunc{"populate": h.Populate, "status": h.PopulateStatus} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			fn(rec, httptest.NewRequest(http.MethodPost, "/api/populate", nil))

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}
			var body APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Error == nil || body.Error.Message == "boom" {
				t.Errorf("error = %+v, internal error must not leak", body.Error)
			}
		})
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		name      string
		publicURL string
		tls       bool
		forwarded string
		want      string
	}{
		{"from host", "", false, "", "ws://importer.local/ws"},
		{"tls", "", true, "", "wss://importer.local/ws"},
		{"behind proxy", "", false, "https", "wss://importer.local/ws"},
		{"public http", "http://cbd.example/", false, "", "ws://cbd.example/ws"},
		{"public https", "https://cbd.example", false, "", "wss://cbd.example/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Server.PublicURL = tt.publicURL
			h := NewHandler(cfg, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "http://importer.local/api/populate", nil)
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-Proto", tt.forwarded)
			}
			if got := h.webSocketURL(req); got != tt.want {
				t.Errorf("webSocketURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckWebSocketOrigin(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.CORSOrigins = []string{"https://app.example"}
	h := NewHandler(cfg, nil, nil)

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example", true},
		{"HTTPS://APP.EXAMPLE", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := h.checkWebSocketOrigin(req); got != tt.want {
			t.Errorf("checkWebSocketOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestWebSocket_NoHub(t *testing.T) {
	h := NewHandler(&config.Config{}, nil, nil)
	rec := httptest.NewRecorder()
	h.WebSocket(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestWebSocket_HubNotRunning(t *testing.T) {
	prev := hubJoinTimeout
	hubJoinTimeout = 50 * time.Millisecond
	t.Cleanup(func() { hubJoinTimeout = prev })

	h := NewHandler(&config.Config{}, nil, ws.NewHub())
	srv := httptest.NewServer(http.HandlerFunc(h.WebSocket))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Errorf("ReadMessage() error = %v, want close %d", err, websocket.CloseTryAgainLater)
	}
}
