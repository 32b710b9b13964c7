// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package dataimport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cbd-importer/internal/config"
	"github.com/tomtom215/cbd-importer/internal/logging"
	"github.com/tomtom215/cbd-importer/internal/metrics"
	"github.com/tomtom215/cbd-importer/internal/store"
)

// Coordinator runs import jobs: it resets the target database and loads
// every source of the data directory into its own collection, one file at
// a time. At most one job runs at a time.
type Coordinator struct {
	cfg         *config.ImportConfig
	connect     store.Connector
	broadcaster Broadcaster
	history     History

	// State
	mu      sync.RWMutex
	running bool
	job     *Job
	task    *Task
}

// NewCoordinator creates a coordinator. A nil broadcaster drops events and a
// nil history keeps the last job in memory.
func NewCoordinator(cfg *config.ImportConfig, connect store.Connector, broadcaster Broadcaster, history History) *Coordinator {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	if history == nil {
		history = NewMemoryHistory()
	}
	return &Coordinator{
		cfg:         cfg,
		connect:     connect,
		broadcaster: broadcaster,
		history:     history,
	}
}

// Task is a handle to a run started in the background.
type Task struct {
	jobID string
	done  chan struct{}
	job   *Job
	err   error
}

// JobID returns the id of the job the task runs.
func (t *Task) JobID() string {
	return t.jobID
}

// Done is closed when the run has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result blocks until the run finishes and returns its final job summary.
// The error is non-nil only for failures that aborted the whole run.
func (t *Task) Result() (*Job, error) {
	<-t.done
	return t.job.Clone(), t.err
}

// Start launches a run in the background and returns immediately.
// ctx bounds the run; it should outlive the request that triggered it.
func (c *Coordinator) Start(ctx context.Context) (*Task, error) {
	job, err := c.begin()
	if err != nil {
		return nil, err
	}

	task := &Task{jobID: job.ID, done: make(chan struct{})}
	c.mu.Lock()
	c.task = task
	c.mu.Unlock()

	go func() {
		defer close(task.done)
		task.job, task.err = c.execute(ctx, job)
	}()
	return task, nil
}

// Run executes one job synchronously and returns its summary. File-level
// failures are reported in the job and through events; the returned error
// is set only when the run was aborted as a whole.
func (c *Coordinator) Run(ctx context.Context) (*Job, error) {
	job, err := c.begin()
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, job)
}

// Running reports whether a job is in progress.
func (c *Coordinator) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Status returns the current job, or the last finished one. It returns nil
// when no job has run yet.
func (c *Coordinator) Status(ctx context.Context) (*Job, error) {
	c.mu.RLock()
	job := c.job.Clone()
	c.mu.RUnlock()
	if job != nil {
		return job, nil
	}
	return c.history.Last(ctx)
}

// Wait blocks until the current background run, if any, has finished.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.RLock()
	task := c.task
	c.mu.RUnlock()
	if task == nil {
		return nil
	}
	select {
	case <-task.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) begin() (*Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil, ErrImportRunning
	}
	c.running = true
	c.job = &Job{
		ID:        uuid.New().String(),
		Status:    JobRunning,
		DataDir:   c.cfg.DataDir,
		StartedAt: time.Now().UTC(),
	}
	return c.job.Clone(), nil
}

// update applies fn to the shared job under the lock.
func (c *Coordinator) update(fn func(j *Job)) {
	c.mu.Lock()
	fn(c.job)
	c.mu.Unlock()
}

func (c *Coordinator) snapshot() *Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.job.Clone()
}

func (c *Coordinator) execute(ctx context.Context, job *Job) (*Job, error) {
	ctx = logging.ContextWithJobID(ctx, job.ID)
	log := logging.Ctx(ctx)

	metrics.SetImportRunning(true)
	defer func() {
		metrics.SetImportRunning(false)
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	log.Info().Str("data_dir", c.cfg.DataDir).Msg("Starting import")

	st, err := c.connect(ctx)
	if err != nil {
		return c.abort(ctx, fmt.Errorf("%w: %w", ErrConnection, err))
	}
	defer func() {
		if err := st.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("Error closing store connection")
		}
	}()

	names, err := ListArchives(c.cfg.DataDir, c.cfg.Suffixes(), c.cfg.SortFiles)
	if err != nil {
		return c.abort(ctx, err)
	}
	sources := Sources(c.cfg.DataDir, names, c.cfg.Suffixes(), c.cfg.CollectionPrefix)

	if err := st.DropDatabase(ctx); err != nil {
		return c.abort(ctx, fmt.Errorf("%w: %w", ErrDatasetReset, err))
	}

	total := len(sources)
	c.update(func(j *Job) { j.TotalFiles = total })
	c.broadcaster.Publish(EventStart, StartEvent{TotalFiles: total})
	log.Info().Int("total_files", total).Msg("Import sources enumerated")

	inserter := NewBatchInserter(st, c.broadcaster, c.cfg.BatchSize)
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return c.abort(ctx, fmt.Errorf("import canceled: %w", err))
		}
		c.update(func(j *Job) { j.CurrentFile = i + 1 })
		c.broadcaster.Publish(EventFile, FileEvent{
			File:       src.Name,
			Collection: src.Collection,
			Current:    i + 1,
			Total:      total,
		})
		log.Info().
			Int("current", i+1).
			Int("total", total).
			Str("file", src.Name).
			Str("collection", src.Collection).
			Msg("Processing file")

		result, err := c.importSource(ctx, inserter, src)
		c.update(func(j *Job) { j.Files = append(j.Files, result) })
		metrics.RecordImportFile(err)

		if err == nil {
			log.Info().
				Str("collection", src.Collection).
				Int64("inserted", result.Inserted).
				Int64("failed", result.Failed).
				Msg("File imported")
			continue
		}
		if !IsFileLevel(err) {
			return c.abort(ctx, err)
		}

		log.Error().Err(err).Str("file", src.Name).Str("collection", src.Collection).Msg("File import failed")
		c.broadcaster.Publish(EventError, ErrorEvent{
			Error:      err.Error(),
			JobID:      job.ID,
			File:       src.Name,
			Collection: src.Collection,
		})
	}

	return c.finish(ctx, log)
}

// importSource decodes and inserts one source. The returned result is filled
// even when the file fails part way.
func (c *Coordinator) importSource(ctx context.Context, inserter *BatchInserter, src Source) (FileResult, error) {
	result := FileResult{File: src.Name, Collection: src.Collection}

	stream, err := OpenStream(src)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	defer stream.Close()

	stats, err := inserter.Insert(ctx, src.Collection, stream)
	result.Decoded = stats.Decoded
	result.Inserted = stats.Inserted
	result.Failed = stats.Failed
	result.Batches = stats.Batches

	if err != nil {
		var fe *FileError
		if !errors.As(err, &fe) && IsFileLevel(err) {
			err = &FileError{File: src.Name, Collection: src.Collection, Record: -1, Err: err}
		}
		result.Error = err.Error()
		return result, err
	}
	return result, nil
}

// finish closes a run that processed every source.
func (c *Coordinator) finish(ctx context.Context, log *zerolog.Logger) (*Job, error) {
	var job *Job
	c.update(func(j *Job) {
		j.FinishedAt = time.Now().UTC()
		if failed := j.FailedFiles(); len(failed) > 0 {
			j.Status = JobFailed
			j.Error = fmt.Sprintf("%d of %d files failed", len(failed), j.TotalFiles)
		} else {
			j.Status = JobCompleted
		}
		job = j.Clone()
	})

	metrics.RecordImportRun(string(job.Status), job.Duration())
	c.saveHistory(ctx, job)

	if job.Status == JobFailed {
		log.Error().
			Strs("failed_files", job.FailedFiles()).
			Int64("inserted", job.Inserted()).
			Dur("duration", job.Duration()).
			Msg("Import finished with errors")
		c.broadcaster.Publish(EventError, ErrorEvent{
			Error:       job.Error,
			JobID:       job.ID,
			FailedFiles: job.FailedFiles(),
		})
		return job, nil
	}

	log.Info().
		Int("files", job.TotalFiles).
		Int64("inserted", job.Inserted()).
		Dur("duration", job.Duration()).
		Msg("Import completed")
	c.broadcaster.Publish(EventDone, DoneEvent{
		Message:     DoneMessage,
		JobID:       job.ID,
		Collections: job.Collections(),
	})
	return job, nil
}

// abort ends the run with a fatal error and a single import:error event.
func (c *Coordinator) abort(ctx context.Context, err error) (*Job, error) {
	var job *Job
	c.update(func(j *Job) {
		j.Status = JobFailed
		j.Error = err.Error()
		j.FinishedAt = time.Now().UTC()
		job = j.Clone()
	})

	logging.Ctx(ctx).Error().Err(err).Msg("Import aborted")
	metrics.RecordImportRun(string(JobFailed), job.Duration())
	c.saveHistory(ctx, job)

	c.broadcaster.Publish(EventError, ErrorEvent{Error: err.Error(), JobID: job.ID})
	return job, err
}

func (c *Coordinator) saveHistory(ctx context.Context, job *Job) {
	if err := c.history.Save(context.WithoutCancel(ctx), job); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to save import history")
	}
}
