// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package main

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cbd-importer/internal/api"
	"github.com/tomtom215/cbd-importer/internal/config"
	"github.com/tomtom215/cbd-importer/internal/store"
)

// breakerStater is implemented by *eventbus.Publisher.
type breakerStater interface {
	BreakerState() string
}

// readinessChecks returns the checks behind /api/health/ready. publisher
// may be nil.
func readinessChecks(cfg *config.Config, connect store.Connector, publisher breakerStater) []api.ReadinessCheck {
	var checks []api.ReadinessCheck
	if cfg.Store.Driver == "mongo" {
		checks = append(checks, api.ReadinessCheck{Name: "store", Check: storeCheck(connect)})
	}
	if publisher != nil {
		checks = append(checks, api.ReadinessCheck{Name: "events", Check: eventsCheck(publisher)})
	}
	return checks
}

// eventsCheck fails while the publisher's circuit breaker is open.
func eventsCheck(p breakerStater) func(ctx context.Context) error {
	return func(context.Context) error {
		if state := p.BreakerState(); state == gobreaker.StateOpen.String() {
			return fmt.Errorf("event bus circuit breaker is %s", state)
		}
		return nil
	}
}
