// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tributary/internal/models"
)

// Sync log statuses.
const (
	SyncStatusRunning = "running"
	SyncStatusSuccess = "success"
	SyncStatusPartial = "partial"
	SyncStatusFailed  = "failed"
)

// SyncLogEntry is one row of sync_log.
type SyncLogEntry struct {
	ID             string     `json:"id"`
	Source         string     `json:"source"`
	RunID          string     `json:"runId,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	WindowStart    *time.Time `json:"windowStart,omitempty"`
	WindowEnd      *time.Time `json:"windowEnd,omitempty"`
	FullSync       bool       `json:"fullSync"`
	Status         string     `json:"status"`
	RecordsSynced  int64      `json:"recordsSynced"`
	RecordsCreated int64      `json:"recordsCreated"`
	RecordsUpdated int64      `json:"recordsUpdated"`
	Errors         []string   `json:"errors,omitempty"`
}

// SyncLogStart describes a session that is about to run.
type SyncLogStart struct {
	Source   models.SourceKind
	RunID    string
	Window   models.SyncWindow
	FullSync bool
}

func (db *DB) createSyncLogTable(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sync_log (
			id VARCHAR PRIMARY KEY,
			source VARCHAR NOT NULL,
			run_id VARCHAR,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			window_start DATE,
			window_end DATE,
			full_sync BOOLEAN NOT NULL DEFAULT false,
			status VARCHAR NOT NULL,
			records_synced BIGINT NOT NULL DEFAULT 0,
			records_created BIGINT NOT NULL DEFAULT 0,
			records_updated BIGINT NOT NULL DEFAULT 0,
			errors VARCHAR
		)`)
	if err != nil {
		return fmt.Errorf("failed to create sync_log table: %w", err)
	}
	return nil
}

// StartSyncLog inserts a running entry and returns its id.
func (db *DB) StartSyncLog(ctx context.Context, start SyncLogStart) (string, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	id := uuid.New().String()
	var windowStart, windowEnd interface{}
	if !start.Window.IsZero() {
		windowStart, windowEnd = start.Window.Start, start.Window.End
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_log (id, source, run_id, started_at, window_start, window_end, full_sync, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(start.Source), nullString(start.RunID), time.Now().UTC(),
		windowStart, windowEnd, start.FullSync, SyncStatusRunning)
	if err != nil {
		return "", fmt.Errorf("failed to insert sync log: %w", err)
	}
	return id, nil
}

// FinishSyncLog records the terminal state of a session.
func (db *DB) FinishSyncLog(ctx context.Context, id string, result models.SyncResult) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	status := SyncStatusSuccess
	switch {
	case result.Success:
	case result.RecordsSynced > 0:
		status = SyncStatusPartial
	default:
		status = SyncStatusFailed
	}

	var errs interface{}
	if len(result.Errors) > 0 {
		b, err := json.Marshal(result.Errors)
		if err != nil {
			return fmt.Errorf("failed to encode sync errors: %w", err)
		}
		errs = string(b)
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE sync_log
		SET completed_at = ?, status = ?, records_synced = ?, records_created = ?,
			records_updated = ?, errors = ?
		WHERE id = ?`,
		time.Now().UTC(), status, result.RecordsSynced, result.RecordsCreated,
		result.RecordsUpdated, errs, id)
	if err != nil {
		return fmt.Errorf("failed to update sync log %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sync log %s not found", id)
	}
	return nil
}

const syncLogColumns = `id, source, run_id, started_at, completed_at, window_start, window_end,
	full_sync, status, records_synced, records_created, records_updated, errors`

// LastSync returns the newest entry for source, or nil when it never ran.
func (db *DB) LastSync(ctx context.Context, source models.SourceKind) (*SyncLogEntry, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT `+syncLogColumns+`
		FROM sync_log WHERE source = ? ORDER BY started_at DESC LIMIT 1`, string(source))
	entry, err := scanSyncLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last sync for %s: %w", source, err)
	}
	return entry, nil
}

// LastSyncs returns the newest entry of every source that has run.
func (db *DB) LastSyncs(ctx context.Context) (map[models.SourceKind]*SyncLogEntry, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+syncLogColumns+`
		FROM sync_log
		QUALIFY ROW_NUMBER() OVER (PARTITION BY source ORDER BY started_at DESC) = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer closeWithLog(rows, "rows")

	out := make(map[models.SourceKind]*SyncLogEntry)
	for rows.Next() {
		entry, err := scanSyncLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		out[models.SourceKind(entry.Source)] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync log: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSyncLog(s rowScanner) (*SyncLogEntry, error) {
	var (
		e           SyncLogEntry
		runID, errs sql.NullString
		completed   sql.NullTime
		wStart      sql.NullTime
		wEnd        sql.NullTime
	)
	if err := s.Scan(&e.ID, &e.Source, &runID, &e.StartedAt, &completed, &wStart, &wEnd,
		&e.FullSync, &e.Status, &e.RecordsSynced, &e.RecordsCreated, &e.RecordsUpdated, &errs); err != nil {
		return nil, err
	}
	e.RunID = runID.String
	if completed.Valid {
		e.CompletedAt = &completed.Time
	}
	if wStart.Valid {
		e.WindowStart = &wStart.Time
	}
	if wEnd.Valid {
		e.WindowEnd = &wEnd.Time
	}
	if errs.Valid && errs.String != "" {
		if err := json.Unmarshal([]byte(errs.String), &e.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode sync errors: %w", err)
		}
	}
	return &e, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
