// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package main

import (
	"fmt"

	"github.com/tomtom215/cbd-importer/internal/config"
	"github.com/tomtom215/cbd-importer/internal/eventbus"
	"github.com/tomtom215/cbd-importer/internal/logging"
)

// initEventBus connects the NATS publisher when events.nats_enabled is
// set. It returns nil when the event bus is disabled.
func initEventBus(cfg *config.EventsConfig) (*eventbus.Publisher, error) {
	if !cfg.NATSEnabled {
		logging.Info().Msg("NATS event bus disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	publisher, err := eventbus.NewPublisher(eventbus.DefaultConfig(cfg.NATSURL, cfg.SubjectPrefix), nil)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	logging.Info().
		Str("url", cfg.NATSURL).
		Str("subject_prefix", cfg.SubjectPrefix).
		Msg("NATS event bus enabled")
	return publisher, nil
}
