// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package services

import (
	"context"
	"io"

	"github.com/tomtom215/cbd-importer/internal/logging"
)

// PublisherService holds the event bus publisher open for the lifetime of
// the tree and closes it on shutdown. The publisher reconnects on its own,
// so Serve never fails.
type PublisherService struct {
	publisher io.Closer
	name      string
}

// NewPublisherService wraps publisher.
func NewPublisherService(publisher io.Closer) *PublisherService {
	return &PublisherService{
		publisher: publisher,
		name:      "event-publisher",
	}
}

// Serve implements suture.Service.
func (s *PublisherService) Serve(ctx context.Context) error {
	<-ctx.Done()
	if err := s.publisher.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close event publisher")
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *PublisherService) String() string {
	return s.name
}
