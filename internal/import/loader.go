// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package bulkimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/logging"
	"github.com/tomtom215/tributary/internal/metrics"
	"github.com/tomtom215/tributary/internal/models"
)

// DefaultBatchSize is used when the loader is given a non-positive size.
const DefaultBatchSize = 1000

// ErrImportInProgress is returned when Load is called while a load is running.
var ErrImportInProgress = errors.New("import already in progress")

// RecordWriter upserts one batch into a table.
type RecordWriter interface {
	WriteBatch(ctx context.Context, spec database.TableSpec, records []models.SourceRecord) (models.BatchOutcome, error)
}

// TableCreator creates the destination table when it does not exist.
type TableCreator interface {
	EnsureTable(ctx context.Context, spec database.TableSpec) error
}

// LoadOptions controls a single load.
type LoadOptions struct {
	// Resume continues from the saved snapshot when it belongs to the same
	// table and input. Otherwise saved progress is discarded.
	Resume bool
}

// Loader writes a RecordSource in fixed-size batches. A batch the writer
// rejects is counted as failed in full and the load moves on.
type Loader struct {
	writer    RecordWriter
	tables    TableCreator
	progress  ProgressTracker
	batchSize int

	mu      sync.RWMutex
	running bool
	stats   *ImportStats
}

// NewLoader creates a loader. tables and progress may be nil.
func NewLoader(writer RecordWriter, tables TableCreator, progress ProgressTracker, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{
		writer:    writer,
		tables:    tables,
		progress:  progress,
		batchSize: batchSize,
	}
}

// Load streams src into its table. The returned stats are valid even when
// an error is returned; Success on them is the overall outcome.
func (l *Loader) Load(ctx context.Context, src RecordSource, opts LoadOptions) (*ImportStats, error) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil, ErrImportInProgress
	}
	l.running = true
	spec := src.Spec()
	l.stats = &ImportStats{
		Table:        spec.Name,
		Input:        src.Name(),
		TotalRecords: src.Total(),
		StartTime:    time.Now(),
	}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	if l.tables != nil {
		if err := l.tables.EnsureTable(ctx, spec); err != nil {
			return l.GetStats(), fmt.Errorf("create table %s: %w", spec.Name, err)
		}
	}

	if err := l.prepare(ctx, src, opts); err != nil {
		return l.GetStats(), err
	}

	logging.Info().
		Str("table", spec.Name).
		Str("input", src.Name()).
		Int64("total_records", src.Total()).
		Int("batch_size", l.batchSize).
		Msg("Starting bulk load")

	for batch := 1; ; batch++ {
		if err := ctx.Err(); err != nil {
			return l.GetStats(), err
		}

		records, rows, rowFailures, err := l.readBatch(src)
		if err != nil {
			return l.GetStats(), fmt.Errorf("read %s: %w", src.Name(), err)
		}
		if rows == 0 {
			break
		}
		l.writeBatch(ctx, spec, batch, records, rows, rowFailures)
	}

	l.mu.Lock()
	l.stats.EndTime = time.Now()
	final := *l.stats
	l.mu.Unlock()

	if l.progress != nil {
		if err := l.progress.Save(ctx, &final); err != nil {
			logging.Warn().Err(err).Msg("Failed to save final progress")
		}
	}

	logging.Info().
		Str("table", final.Table).
		Int64("imported", final.Imported).
		Int64("failed", final.Failed).
		Int("failed_batches", final.FailedBatches).
		Dur("duration", final.Duration()).
		Bool("success", final.Success()).
		Msg("Bulk load completed")

	return &final, nil
}

// prepare applies or discards saved progress.
func (l *Loader) prepare(ctx context.Context, src RecordSource, opts LoadOptions) error {
	if l.progress == nil {
		return nil
	}
	if !opts.Resume {
		return l.progress.Clear(ctx)
	}

	prev, err := l.progress.Load(ctx)
	if err != nil {
		return err
	}
	if prev == nil {
		return nil
	}
	if prev.Table != src.Spec().Name || prev.Input != src.Name() {
		logging.Warn().
			Str("saved_table", prev.Table).
			Str("saved_input", prev.Input).
			Msg("Saved progress belongs to a different load; starting over")
		return l.progress.Clear(ctx)
	}

	skipped, err := src.Skip(prev.Processed)
	if err != nil {
		return fmt.Errorf("skip to row %d: %w", prev.Processed, err)
	}

	l.mu.Lock()
	l.stats.Processed = skipped
	l.stats.Imported = prev.Imported
	l.stats.Failed = prev.Failed
	l.stats.FailedBatches = prev.FailedBatches
	l.stats.ResumedFrom = skipped
	l.mu.Unlock()

	logging.Info().Int64("resumed_from", skipped).Msg("Resuming bulk load")
	return nil
}

// readBatch consumes up to batchSize rows. Rows that cannot be mapped are
// counted in rowFailures and not returned.
func (l *Loader) readBatch(src RecordSource) (records []models.SourceRecord, rows, rowFailures int, err error) {
	records = make([]models.SourceRecord, 0, l.batchSize)
	for rows < l.batchSize {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			rows++
			rowFailures++
			logging.Debug().Err(rowErr).Msg("Skipping unusable row")
			continue
		}
		if err != nil {
			return nil, 0, 0, err
		}
		rows++
		records = append(records, rec)
	}
	return records, rows, rowFailures, nil
}

func (l *Loader) writeBatch(ctx context.Context, spec database.TableSpec, batch int, records []models.SourceRecord, rows, rowFailures int) {
	imported, failed := 0, rowFailures
	if len(records) > 0 {
		if _, err := l.writer.WriteBatch(ctx, spec, records); err != nil {
			logging.Error().
				Err(err).
				Str("table", spec.Name).
				Int("batch", batch).
				Int("records", len(records)).
				Msg("Bulk load batch failed")
			failed += len(records)
		} else {
			imported = len(records)
		}
	}

	l.mu.Lock()
	l.stats.Processed += int64(rows)
	l.stats.Imported += int64(imported)
	l.stats.Failed += int64(failed)
	if imported == 0 && len(records) > 0 {
		l.stats.FailedBatches++
	}
	stats := *l.stats
	l.mu.Unlock()

	if l.progress != nil {
		if err := l.progress.Save(ctx, &stats); err != nil {
			logging.Warn().Err(err).Msg("Failed to save progress")
		}
	}

	metrics.RecordBulkBatch(spec.Name, imported, failed, stats.Progress())

	logging.Info().
		Int("batch", batch).
		Int64("processed", stats.Processed).
		Int64("total_records", stats.TotalRecords).
		Float64("progress_percent", stats.Progress()).
		Int64("imported", stats.Imported).
		Int64("failed", stats.Failed).
		Float64("records_per_second", stats.RecordsPerSecond()).
		Msg("Bulk load progress")
}

// GetStats returns a copy of the current statistics.
func (l *Loader) GetStats() *ImportStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.stats == nil {
		return &ImportStats{}
	}
	stats := *l.stats
	return &stats
}

// IsRunning reports whether a load is in progress.
func (l *Loader) IsRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}
