// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cbd-importer/internal/config"
	"github.com/tomtom215/cbd-importer/internal/logging"
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cbdimport",
		Short:         "Reload the CBD events database from compressed JSON dumps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newTokenCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// initLogging configures the global logger from cfg, with level overriding
// the configured level when set.
func initLogging(cfg *config.LoggingConfig, level string) {
	if level == "" {
		level = cfg.Level
	}
	logging.Init(logging.Config{
		Level:     level,
		Format:    cfg.Format,
		Caller:    cfg.Caller,
		Timestamp: true,
	})
}
