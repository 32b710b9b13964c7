// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cbd-importer/internal/config"
	"github.com/tomtom215/cbd-importer/internal/eventbus"
	dataimport "github.com/tomtom215/cbd-importer/internal/import"
	"github.com/tomtom215/cbd-importer/internal/logging"
	"github.com/tomtom215/cbd-importer/internal/store"
)

// ErrFilesFailed is returned when the run finished but some files could
// not be imported.
var ErrFilesFailed = errors.New("import finished with failed files")

type importOptions struct {
	DataDir    string
	BatchSize  int
	Suffix     string
	Driver     string
	MongoURI   string
	Database   string
	BadgerPath string
	SortFiles  bool
	Zip        bool
	Publish    bool
	LogLevel   string
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Drop the target database and load every archive in the data directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			initLogging(&cfg.Logging, opts.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runImport(ctx, cfg, opts.Publish, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.DataDir, "data-dir", "", "directory holding the archives (DATA_DIR)")
	f.IntVar(&opts.BatchSize, "batch-size", 0, "documents per bulk insert (BATCH_SIZE)")
	f.StringVar(&opts.Suffix, "suffix", "", "archive name suffix (IMPORT_SUFFIX)")
	f.StringVar(&opts.Driver, "store", "", "store driver: mongo or badger (STORE_DRIVER)")
	f.StringVar(&opts.MongoURI, "mongo-uri", "", "MongoDB connection string (MONGO_URI)")
	f.StringVar(&opts.Database, "db", "", "target database name (DB_NAME)")
	f.StringVar(&opts.BadgerPath, "badger-path", "", "Badger directory when --store=badger (BADGER_PATH)")
	f.BoolVar(&opts.SortFiles, "sort", false, "process archives in lexical order")
	f.BoolVar(&opts.Zip, "zip", false, "also read .zip archives")
	f.BoolVar(&opts.Publish, "publish", false, "publish progress to NATS when events.nats_enabled is set")
	f.StringVar(&opts.LogLevel, "log-level", "", "log level override")
	return cmd
}

// apply copies flags that were set on the command line over cfg.
func (o *importOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("data-dir") {
		cfg.Import.DataDir = o.DataDir
	}
	if f.Changed("batch-size") {
		cfg.Import.BatchSize = o.BatchSize
	}
	if f.Changed("suffix") {
		cfg.Import.Suffix = o.Suffix
	}
	if f.Changed("store") {
		cfg.Store.Driver = o.Driver
	}
	if f.Changed("mongo-uri") {
		cfg.Store.MongoURI = o.MongoURI
	}
	if f.Changed("db") {
		cfg.Store.Database = o.Database
	}
	if f.Changed("badger-path") {
		cfg.Store.BadgerPath = o.BadgerPath
	}
	if f.Changed("sort") {
		cfg.Import.SortFiles = o.SortFiles
	}
	if f.Changed("zip") {
		cfg.Import.ZipEnabled = o.Zip
	}
}

// runImport executes one run synchronously and writes a per-file summary
// to out.
func runImport(ctx context.Context, cfg *config.Config, publish bool, out io.Writer) error {
	connect, err := store.NewConnector(cfg.Store)
	if err != nil {
		return err
	}

	broadcaster := dataimport.Fanout{progressLogger{}}
	if publish && cfg.Events.NATSEnabled {
		publisher, err := eventbus.NewPublisher(eventbus.DefaultConfig(cfg.Events.NATSURL, cfg.Events.SubjectPrefix), nil)
		if err != nil {
			return fmt.Errorf("create NATS publisher: %w", err)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logging.Warn().Err(err).Msg("Failed to close event publisher")
			}
		}()
		broadcaster = append(broadcaster, publisher)
	}

	coordinator := dataimport.NewCoordinator(&cfg.Import, connect, broadcaster, nil)
	job, runErr := coordinator.Run(ctx)
	if job != nil {
		writeSummary(out, job)
	}
	if runErr != nil {
		return runErr
	}
	if failed := job.FailedFiles(); len(failed) > 0 {
		return fmt.Errorf("%w: %s", ErrFilesFailed, strings.Join(failed, ", "))
	}
	return nil
}

func writeSummary(out io.Writer, job *dataimport.Job) {
	_, _ = fmt.Fprintf(out, "job %s: %s in %s\n", job.ID, job.Status, job.Duration().Round(time.Millisecond))
	for _, f := range job.Files {
		line := fmt.Sprintf("  %-40s %-20s inserted=%d failed=%d", f.File, f.Collection, f.Inserted, f.Failed)
		if f.Error != "" {
			line += " error=" + f.Error
		}
		_, _ = fmt.Fprintln(out, line)
	}
	if job.Error != "" {
		_, _ = fmt.Fprintf(out, "  error: %s\n", job.Error)
	}
}
