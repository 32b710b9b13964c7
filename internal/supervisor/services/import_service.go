// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	dataimport "github.com/tomtom215/cbd-importer/internal/import"
	"github.com/tomtom215/cbd-importer/internal/logging"
)

// ErrImportServiceStopped is returned by Trigger once the supervisor has
// stopped the service and until it is served again.
var ErrImportServiceStopped = errors.New("import service is shutting down")

// Coordinator is the part of *dataimport.Coordinator the service drives.
type Coordinator interface {
	Start(ctx context.Context) (*dataimport.Task, error)
	Status(ctx context.Context) (*dataimport.Job, error)
	Wait(ctx context.Context) error
}

// ImportService owns the context background runs are bound to. Runs
// triggered over HTTP survive the request but are canceled when the tree
// shuts down.
//
// When autoStart is set the service starts one run the first time it
// comes up. Restarts by the supervisor do not start another.
type ImportService struct {
	coordinator  Coordinator
	autoStart    bool
	autoStarted  atomic.Bool
	drainTimeout time.Duration
	name         string

	// serving is set once Serve has made its auto-start decision.
	serving atomic.Bool

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	stopping bool
}

// NewImportService wraps coordinator. drainTimeout bounds how long Serve
// waits for an active run after shutdown was requested; non-positive
// values become 10s.
func NewImportService(coordinator Coordinator, autoStart bool, drainTimeout time.Duration) *ImportService {
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ImportService{
		coordinator:  coordinator,
		autoStart:    autoStart,
		drainTimeout: drainTimeout,
		name:         "import",
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Trigger starts a background run. It returns dataimport.ErrImportRunning
// while another run is active.
func (s *ImportService) Trigger() (*dataimport.Task, error) {
	ctx, err := s.runContext()
	if err != nil {
		return nil, err
	}
	return s.coordinator.Start(ctx)
}

// runContext returns the context runs are bound to, replacing it if a
// previous Serve canceled it without a shutdown being requested.
func (s *ImportService) runContext() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		return nil, ErrImportServiceStopped
	}
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	return s.ctx, nil
}

// Status returns the current or last job.
func (s *ImportService) Status(ctx context.Context) (*dataimport.Job, error) {
	return s.coordinator.Status(ctx)
}

// Serve implements suture.Service.
func (s *ImportService) Serve(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = false
	s.mu.Unlock()
	defer s.serving.Store(false)

	if s.autoStart && s.autoStarted.CompareAndSwap(false, true) {
		task, err := s.Trigger()
		switch {
		case errors.Is(err, dataimport.ErrImportRunning):
			logging.Info().Msg("Import already running, skipping automatic start")
		case err != nil:
			return fmt.Errorf("automatic import failed to start: %w", err)
		default:
			logging.Info().Str("job_id", task.JobID()).Msg("Automatic import started")
		}
	} else {
		logging.Info().Msg("Import service started (on-demand mode)")
	}
	s.serving.Store(true)

	<-ctx.Done()
	s.mu.Lock()
	s.stopping = true
	s.cancel()
	s.mu.Unlock()

	drainCtx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()
	if err := s.coordinator.Wait(drainCtx); err != nil {
		logging.Warn().Err(err).Dur("timeout", s.drainTimeout).Msg("Import run did not stop before the drain timeout")
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *ImportService) String() string {
	return s.name
}
