// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/logging"
	"github.com/tomtom215/tributary/internal/metrics"
	"github.com/tomtom215/tributary/internal/models"
)

// BatchWriter persists one batch atomically. *database.Writer satisfies it.
type BatchWriter interface {
	WriteBatch(ctx context.Context, spec database.TableSpec, records []models.SourceRecord) (models.BatchOutcome, error)
}

// SyncLog records session lifecycles. *database.DB satisfies it.
type SyncLog interface {
	StartSyncLog(ctx context.Context, start database.SyncLogStart) (string, error)
	FinishSyncLog(ctx context.Context, id string, result models.SyncResult) error
}

// SessionConfig tunes a Session.
type SessionConfig struct {
	BatchSize     int
	TrailingDays  int
	Timeout       time.Duration // wall-clock ceiling per run; 0 disables
	FullSyncStart time.Time
}

// Session runs one connector end to end: window, fetch, batched writes and
// a terminal SyncResult.
type Session[O SessionOptions] struct {
	connector Connector[O]
	writer    BatchWriter
	log       SyncLog
	tables    map[string]database.TableSpec
	cfg       SessionConfig
	now       func() time.Time
}

// NewSession wires a connector to its writer and sync log.
func NewSession[O SessionOptions](connector Connector[O], writer BatchWriter, log SyncLog, cfg SessionConfig) *Session[O] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.TrailingDays <= 0 {
		cfg.TrailingDays = 7
	}
	tables := make(map[string]database.TableSpec)
	for _, spec := range database.SourceTables() {
		tables[spec.Name] = spec
	}
	return &Session[O]{
		connector: connector,
		writer:    writer,
		log:       log,
		tables:    tables,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Source returns the connector's kind.
func (s *Session[O]) Source() models.SourceKind {
	return s.connector.Kind()
}

// ResolveWindow picks the effective window: full history when FullSync is
// set, else the explicit range, else the trailing window ending today.
func (s *Session[O]) ResolveWindow(opts CommonOptions) (models.SyncWindow, error) {
	today := models.Day(s.now())
	switch {
	case opts.FullSync:
		start := s.cfg.FullSyncStart
		if start.IsZero() || start.After(today) {
			start = today
		}
		return models.NewSyncWindow(start, today)
	case opts.DateRange != nil:
		return opts.DateRange.Window()
	default:
		return models.TrailingWindow(today, s.cfg.TrailingDays), nil
	}
}

type sessionRun struct {
	totals  models.BatchOutcome
	batches int
	errors  []string
}

// Run executes one sync. It never returns an error: every failure is
// captured in the result.
func (s *Session[O]) Run(ctx context.Context, opts O) models.SyncResult {
	start := s.now()
	source := s.Source()
	logger := logging.WithSource(string(source))

	common := opts.Common()
	window, err := s.ResolveWindow(common)
	if err != nil {
		return s.finish(ctx, "", start, sessionRun{}, err)
	}

	logID, err := s.log.StartSyncLog(ctx, database.SyncLogStart{
		Source:   source,
		RunID:    logging.RunIDFromContext(ctx),
		Window:   window,
		FullSync: common.FullSync,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create sync log")
		return models.SyncResult{
			Success:  false,
			Errors:   []string{"failed to create sync log: " + err.Error()},
			Duration: s.now().Sub(start),
			Message:  "Sync failed to start",
		}
	}

	logger.Info().
		Str("sync_id", logID).
		Str("window_start", window.StartString()).
		Str("window_end", window.EndString()).
		Bool("full_sync", common.FullSync).
		Msg("Sync session started")

	metrics.SyncInProgress.WithLabelValues(string(source)).Set(1)
	defer metrics.SyncInProgress.WithLabelValues(string(source)).Set(0)

	runCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var run sessionRun
	fetchErr := s.fetch(runCtx, window, common.FullSync, opts, &run)
	return s.finish(ctx, logID, start, run, fetchErr)
}

func (s *Session[O]) fetch(ctx context.Context, window models.SyncWindow, fullSync bool, opts O, run *sessionRun) error {
	source := s.Source()
	if tester, ok := s.connector.(ConnectionTester); ok {
		if err := tester.TestConnection(ctx); err != nil {
			return fmt.Errorf("%s connection failed: %w", source.DisplayName(), err)
		}
	}

	req := FetchRequest[O]{Window: window, FullSync: fullSync, Options: opts}
	return s.connector.Fetch(ctx, req, func(p Page) error {
		spec, ok := s.tables[p.Table]
		if !ok {
			return fmt.Errorf("connector produced records for unknown table %q", p.Table)
		}
		s.writePage(ctx, spec, p.Records, run)
		return ctx.Err()
	})
}

// writePage splits a page into batches. A failed batch is recorded and the
// remaining batches still run.
func (s *Session[O]) writePage(ctx context.Context, spec database.TableSpec, records []models.SourceRecord, run *sessionRun) {
	for i := 0; i < len(records); i += s.cfg.BatchSize {
		end := i + s.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]
		run.batches++

		outcome, err := s.writer.WriteBatch(ctx, spec, batch)
		if err != nil {
			logger := logging.WithSource(string(s.Source()))
			logger.Error().
				Err(err).
				Str("table", spec.Name).
				Int("batch", run.batches).
				Int("records", len(batch)).
				Msg("Batch write failed")
			run.errors = append(run.errors, fmt.Sprintf("%s batch %d (%d records): %v", spec.Name, run.batches, len(batch), err))
			continue
		}
		run.totals.Inserted += outcome.Inserted
		run.totals.Updated += outcome.Updated
	}
}

// finish builds the terminal result, closes the sync log and records
// metrics. A fetch error replaces any batch errors as the sole error.
func (s *Session[O]) finish(ctx context.Context, logID string, start time.Time, run sessionRun, fetchErr error) models.SyncResult {
	source := s.Source()
	logger := logging.WithSource(string(source))
	duration := s.now().Sub(start)

	result := models.SyncResult{
		SyncID:         logID,
		RecordsSynced:  run.totals.Total(),
		RecordsCreated: run.totals.Inserted,
		RecordsUpdated: run.totals.Updated,
		Duration:       duration,
	}

	outcome := "success"
	switch {
	case fetchErr != nil:
		result.Errors = []string{fetchErr.Error()}
		result.Message = "Sync failed: " + fetchErr.Error()
		outcome = "failed"
	case len(run.errors) > 0:
		result.Errors = run.errors
		result.Message = fmt.Sprintf("Partially synced %d records in %.1fs with %d errors",
			result.RecordsSynced, duration.Seconds(), len(run.errors))
		outcome = "partial"
	default:
		result.Success = true
		result.Message = fmt.Sprintf("Successfully synced %d records in %.1fs", result.RecordsSynced, duration.Seconds())
	}

	if logID != "" {
		// The caller's context may already be done after a timeout; the log
		// update gets its own deadline.
		logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := s.log.FinishSyncLog(logCtx, logID, result); err != nil {
			logger.Warn().Err(err).Str("sync_id", logID).Msg("Failed to update sync log")
		}
		cancel()
	}

	metrics.RecordSyncSession(string(source), outcome, duration, result.RecordsCreated, result.RecordsUpdated)

	event := logger.Info()
	if !result.Success {
		event = logger.Warn().Strs("errors", result.Errors)
	}
	event.
		Str("sync_id", logID).
		Int("records_synced", result.RecordsSynced).
		Int("created", result.RecordsCreated).
		Int("updated", result.RecordsUpdated).
		Int("batches", run.batches).
		Dur("duration", duration).
		Msg("Sync session finished")

	return result
}
