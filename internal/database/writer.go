// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/tributary/internal/metrics"
	"github.com/tomtom215/tributary/internal/models"
)

const maxWriteAttempts = 3

// Writer upserts batches of source records into destination tables.
type Writer struct {
	db  *DB
	now func() time.Time
}

// NewWriter returns a Writer bound to db.
func NewWriter(db *DB) *Writer {
	return &Writer{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WriteBatch writes records in a single transaction. Records sharing a key
// collapse to the last occurrence. Any row failure rolls back the whole
// batch; transaction conflicts are retried with 1ms, 2ms, 4ms backoff.
func (w *Writer) WriteBatch(ctx context.Context, spec TableSpec, records []models.SourceRecord) (models.BatchOutcome, error) {
	if len(records) == 0 {
		return models.BatchOutcome{}, nil
	}
	if err := spec.Validate(); err != nil {
		return models.BatchOutcome{}, err
	}

	rows, err := dedupeByKey(spec, records)
	if err != nil {
		metrics.RecordBatch(spec.Name, len(records), 0, err)
		return models.BatchOutcome{}, err
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var outcome models.BatchOutcome
	var lastErr error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		outcome, lastErr = w.writeOnce(ctx, spec, rows)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			lastErr = fmt.Errorf("batch write canceled: %w", ctx.Err())
			break
		}
		if !isTransactionConflict(lastErr) || attempt == maxWriteAttempts-1 {
			break
		}
		backoff := time.Millisecond * time.Duration(1<<uint(attempt))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
		}
		if ctx.Err() != nil {
			break
		}
	}

	metrics.RecordBatch(spec.Name, len(rows), time.Since(start), lastErr)
	if lastErr != nil {
		return models.BatchOutcome{}, fmt.Errorf("failed to write %d rows to %s: %w", len(rows), spec.Name, lastErr)
	}
	return outcome, nil
}

type keyedRow struct {
	key    []interface{}
	record models.SourceRecord
}

// dedupeByKey keeps the last record per key, in first-seen key order.
func dedupeByKey(spec TableSpec, records []models.SourceRecord) ([]keyedRow, error) {
	index := make(map[string]int, len(records))
	rows := make([]keyedRow, 0, len(records))
	for _, r := range records {
		key, err := spec.KeyValues(r)
		if err != nil {
			return nil, err
		}
		k := keyString(key)
		if i, ok := index[k]; ok {
			rows[i] = keyedRow{key: key, record: r}
			continue
		}
		index[k] = len(rows)
		rows = append(rows, keyedRow{key: key, record: r})
	}
	return rows, nil
}

func keyString(vals []interface{}) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		if t, ok := v.(time.Time); ok {
			parts[i] = t.Format(models.DateLayout)
			continue
		}
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "\x1f")
}

func (w *Writer) writeOnce(ctx context.Context, spec TableSpec, rows []keyedRow) (models.BatchOutcome, error) {
	tx, err := w.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.BatchOutcome{}, fmt.Errorf("failed to begin transaction: %w", err)
	}

	outcome, err := w.upsertRows(ctx, tx, spec, rows)
	if err != nil {
		rollbackQuietly(tx)
		return models.BatchOutcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.BatchOutcome{}, fmt.Errorf("failed to commit batch: %w", err)
	}
	return outcome, nil
}

func (w *Writer) upsertRows(ctx context.Context, tx *sql.Tx, spec TableSpec, rows []keyedRow) (models.BatchOutcome, error) {
	existsStmt, err := tx.PrepareContext(ctx, spec.ExistsSQL())
	if err != nil {
		return models.BatchOutcome{}, fmt.Errorf("failed to prepare key lookup: %w", err)
	}
	defer closeWithLog(existsStmt, "statement")

	upsertStmt, err := tx.PrepareContext(ctx, spec.UpsertSQL())
	if err != nil {
		return models.BatchOutcome{}, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer closeWithLog(upsertStmt, "statement")

	syncedAt := w.now()
	var outcome models.BatchOutcome
	for _, row := range rows {
		var existing int
		if err := existsStmt.QueryRowContext(ctx, row.key...).Scan(&existing); err != nil {
			return models.BatchOutcome{}, fmt.Errorf("failed to look up key: %w", err)
		}

		args, err := spec.RowValues(row.record, syncedAt)
		if err != nil {
			return models.BatchOutcome{}, err
		}
		if _, err := upsertStmt.ExecContext(ctx, args...); err != nil {
			return models.BatchOutcome{}, fmt.Errorf("failed to upsert row %s: %w", keyString(row.key), err)
		}

		if existing > 0 {
			outcome.Updated++
		} else {
			outcome.Inserted++
		}
	}
	return outcome, nil
}
