// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

// Package eventbus mirrors import progress events onto NATS so that other
// processes (dashboards, audit consumers, other API replicas) can follow a
// run without holding a WebSocket open.
//
// Each event is published on core NATS, subject "<prefix>.<event>", with the
// same {"event","data"} body the WebSocket clients receive. A circuit breaker
// stops publish attempts while the broker is failing so a dead broker never
// slows the import down.
package eventbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cbd-importer/internal/logging"
	"github.com/tomtom215/cbd-importer/internal/metrics"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("event publisher is closed")

// Config holds publisher settings.
type Config struct {
	URL             string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int

	// BreakerFailures consecutive failures open the breaker for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns production defaults for url and prefix.
func DefaultConfig(url, prefix string) Config {
	return Config{
		URL:             url,
		SubjectPrefix:   prefix,
		MaxReconnects:   -1, // Unlimited
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// envelope is the message body, identical to the WebSocket frame.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Publisher implements dataimport.Broadcaster on top of a Watermill NATS
// publisher with circuit breaker protection.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	prefix    string
	mu        sync.RWMutex
	closed    bool
}

// NewPublisher connects to NATS. The connection is retried in the
// background, so a broker that is down at startup does not fail the caller.
func NewPublisher(cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewSlogLogger(logging.NewSlogLogger())
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("cbd-importer"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	return newPublisher(pub, cfg), nil
}

func newPublisher(pub message.Publisher, cfg Config) *Publisher {
	return &Publisher{
		publisher: pub,
		breaker:   newBreaker(cfg),
		prefix:    cfg.SubjectPrefix,
	}
}

func newBreaker(cfg Config) *gobreaker.CircuitBreaker[any] {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "nats-events",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("event publisher circuit breaker state changed")
		},
	})
}

// Subject returns the NATS subject an event is published on.
func (p *Publisher) Subject(event string) string {
	return p.prefix + "." + event
}

// Publish implements dataimport.Broadcaster. Failures are counted and
// logged; they never reach the import run.
func (p *Publisher) Publish(event string, data any) {
	if err := p.publish(event, data); err != nil {
		metrics.NATSPublishErrors.Inc()
		if errors.Is(err, gobreaker.ErrOpenState) {
			logging.Debug().Str("event", event).Msg("event publisher breaker open, event skipped")
			return
		}
		logging.Warn().Err(err).Str("subject", p.Subject(event)).Msg("failed to publish import event")
	}
}

func (p *Publisher) publish(event string, data any) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	payload, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event", event)

	subject := p.Subject(event)
	if _, err := p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(subject, msg)
	}); err != nil {
		return err
	}

	metrics.NATSEventsPublished.WithLabelValues(event).Inc()
	return nil
}

// BreakerState reports the circuit breaker state for health checks.
func (p *Publisher) BreakerState() string {
	return p.breaker.State().String()
}

// Close flushes and closes the NATS connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
