// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

// Package websocket pushes import progress to connected browsers.
//
// The Hub owns the set of open connections. Clients join through the
// Register channel once their greeting is queued and leave through
// Unregister when their read loop sees the socket close. Publish is
// synchronous: it serialises the event once, takes a snapshot of the
// registry and hands the frame to every client without blocking. A client
// whose buffer is full misses that frame; nothing is queued for later and
// nothing is replayed to clients that join mid-run.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cbd-importer/internal/logging"
	"github.com/tomtom215/cbd-importer/internal/metrics"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal path (SIGTERM, supervisor stop).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline means the parent deadline expired.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// EventConnectionSuccess greets a client right after the upgrade.
const EventConnectionSuccess = "connection:success"

// Message is the frame written to every client.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ConnectionData is the payload of connection:success.
type ConnectionData struct {
	UserID string `json:"userId"`
}

// Hub maintains the set of active clients and fans events out to them.
type Hub struct {
	clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a Hub. RunWithContext must be running before clients
// are registered.
func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext processes registrations until ctx is canceled, then
// closes every client and returns ctx.Err(). It is meant to run under a
// suture supervisor.
//
// Shutdown is checked first, then pending lifecycle events, so a burst of
// registrations cannot delay a stop.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Uint64("client_id", client.id).
		Str("user_id", client.userID).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Uint64("client_id", client.id).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// Join registers client through the run loop. It gives up with ctx.Err()
// when ctx ends first, which is what happens once the loop has stopped.
func (h *Hub) Join(ctx context.Context, client *Client) error {
	select {
	case h.Register <- client:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// leave unregisters a client through the run loop, falling back to a direct
// removal when the loop is not running (shutdown or supervisor restart).
func (h *Hub) leave(client *Client) {
	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case h.Unregister <- client:
	case <-timer.C:
		h.remove(client)
	}
}

// Publish implements dataimport.Broadcaster. The frame reaches the clients
// registered at the moment of the call; full buffers are skipped.
func (h *Hub) Publish(event string, data any) {
	frame, err := MarshalMessage(Message{Event: event, Data: data})
	if err != nil {
		metrics.WSErrors.WithLabelValues("marshal").Inc()
		logging.Error().Err(err).Str("event", event).Msg("failed to encode websocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.sortedClients() {
		select {
		case client.send <- frame:
			metrics.WSMessagesSent.Inc()
		default:
			metrics.WSMessagesDropped.Inc()
			logging.Debug().
				Uint64("client_id", client.id).
				Str("event", event).
				Msg("websocket client buffer full, event skipped")
		}
	}
}

// sortedClients returns the registry in connection order. Callers hold mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// logGracefulShutdown closes all clients and logs why the hub stopped.
// ctx.Err() is not logged as an error: cancellation is the expected exit.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes every send channel; each writePump then sends a
// close frame and drops its connection.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// MarshalMessage converts a message to its JSON frame.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
