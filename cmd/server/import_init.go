// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package main

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/cbd-importer/internal/config"
	dataimport "github.com/tomtom215/cbd-importer/internal/import"
	"github.com/tomtom215/cbd-importer/internal/logging"
	"github.com/tomtom215/cbd-importer/internal/store"
)

// importComponents holds the importer and the resources it owns.
type importComponents struct {
	coordinator *dataimport.Coordinator
	connect     store.Connector
	historyDB   *badger.DB
}

// initImport builds the store connector, the job history and the
// coordinator.
func initImport(cfg *config.Config, broadcaster dataimport.Broadcaster) (*importComponents, error) {
	connect, err := store.NewConnector(cfg.Store)
	if err != nil {
		return nil, err
	}

	c := &importComponents{connect: connect}

	var history dataimport.History
	if cfg.Import.HistoryPath != "" {
		h, db, err := dataimport.OpenBadgerHistory(cfg.Import.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("open import history: %w", err)
		}
		history, c.historyDB = h, db
		logging.Info().Str("path", cfg.Import.HistoryPath).Msg("Import history persisted")
	}

	c.coordinator = dataimport.NewCoordinator(&cfg.Import, connect, broadcaster, history)
	return c, nil
}

// Close releases the history database.
func (c *importComponents) Close() {
	if c.historyDB == nil {
		return
	}
	if err := c.historyDB.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing import history")
	}
}

// storeCheck opens a connection and lists collections. Only the Mongo
// driver is probed: a Badger directory is locked by the run that uses it.
func storeCheck(connect store.Connector) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		st, err := connect(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close(context.WithoutCancel(ctx)) }()
		_, err = st.Collections(ctx)
		return err
	}
}
