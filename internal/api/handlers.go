// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/cbd-importer/internal/auth"
	"github.com/tomtom215/cbd-importer/internal/config"
	dataimport "github.com/tomtom215/cbd-importer/internal/import"
	"github.com/tomtom215/cbd-importer/internal/logging"
	"github.com/tomtom215/cbd-importer/internal/metrics"
	ws "github.com/tomtom215/cbd-importer/internal/websocket"
)

// ImportController starts runs and reports their state.
type ImportController interface {
	// Trigger starts a background run bound to the process lifetime, not to
	// the calling request.
	Trigger() (*dataimport.Task, error)

	// Status returns the current or last job, or nil.
	Status(ctx context.Context) (*dataimport.Job, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// readinessTimeout bounds each readiness check.
const readinessTimeout = 3 * time.Second

// hubJoinTimeout bounds how long an upgraded connection waits for the hub.
var hubJoinTimeout = 5 * time.Second

// Handler serves the import API.
type Handler struct {
	config    *config.Config
	importer  ImportController
	wsHub     *ws.Hub
	checks    []ReadinessCheck
	startTime time.Time
}

// NewHandler creates the handler set.
func NewHandler(cfg *config.Config, importer ImportController, hub *ws.Hub, checks ...ReadinessCheck) *Handler {
	return &Handler{
		config:    cfg,
		importer:  importer,
		wsHub:     hub,
		checks:    checks,
		startTime: time.Now(),
	}
}

// WebSocketInfo tells the caller where to follow the run.
type WebSocketInfo struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// PopulateAck is returned by POST /api/populate.
type PopulateAck struct {
	Message   string        `json:"message"`
	JobID     string        `json:"job_id"`
	WebSocket WebSocketInfo `json:"websocket"`
}

// Populate starts an import run and acknowledges immediately. The run's
// outcome is only observable through the progress channel and the status
// endpoint.
func (h *Handler) Populate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	task, err := h.importer.Trigger()
	if errors.Is(err, dataimport.ErrImportRunning) {
		rw.Conflict("An import is already running.")
		return
	}
	if err != nil {
		rw.InternalError("Failed to start import", err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("job_id", task.JobID()).
		Str("user_id", auth.UserID(r.Context())).
		Msg("import triggered")

	rw.Accepted(PopulateAck{
		Message: "Import started. Connect to the WebSocket to follow progress.",
		JobID:   task.JobID(),
		WebSocket: WebSocketInfo{
			URL:    h.webSocketURL(r),
			Events: dataimport.EventNames,
		},
	})
}

// PopulateStatus returns the current or last job.
func (h *Handler) PopulateStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	job, err := h.importer.Status(r.Context())
	if err != nil {
		rw.InternalError("Failed to read import status", err)
		return
	}
	if job == nil {
		rw.Success(map[string]any{"status": dataimport.JobIdle})
		return
	}
	rw.Success(job)
}

// webSocketURL builds the progress channel address from server.public_url
// or, failing that, from the request.
func (h *Handler) webSocketURL(r *http.Request) string {
	if h.config != nil && h.config.Server.PublicURL != "" {
		base := strings.TrimSuffix(h.config.Server.PublicURL, "/")
		base = strings.Replace(base, "https://", "wss://", 1)
		base = strings.Replace(base, "http://", "ws://", 1)
		return base + "/ws"
	}
	scheme := "ws"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "wss"
	}
	return scheme + "://" + r.Host + "/ws"
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin allows configured CORS origins. Requests without an
// Origin header come from non-browser clients and rely on the token alone.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.config == nil {
		return true
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	logging.Ctx(r.Context()).Warn().Str("origin", origin).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and registers it with the hub. The
// client receives connection:success first, then every import event
// published while it stays connected.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn, auth.UserID(r.Context()))
	ctx, cancel := context.WithTimeout(context.Background(), hubJoinTimeout)
	defer cancel()
	if err := h.wsHub.Join(ctx, client); err != nil {
		metrics.WSErrors.WithLabelValues("register").Inc()
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket hub did not accept the client")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "progress channel unavailable"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	client.Start()
}

// HealthLive reports that the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]any{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady runs every readiness check and answers 503 if any fails.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]string, len(h.checks))
	ready := true
	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			ready = false
			results[c.Name] = err.Error()
			continue
		}
		results[c.Name] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	data := map[string]any{
		"ready":  ready,
		"checks": results,
		"uptime": time.Since(h.startTime).Seconds(),
	}
	if h.wsHub != nil {
		data["websocket_clients"] = h.wsHub.GetClientCount()
	}
	NewResponseWriter(w, r).Status(status, data)
}
