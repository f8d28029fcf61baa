// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

// Package database is Tributary's DuckDB storage layer.
//
// # Tables
//
// Every destination table is described by a TableSpec: its columns, the
// subset that forms the natural key, and how each column is filled from a
// models.SourceRecord (record date, external id, dimension or metric).
// SourceTables lists the tables written by the connectors; New creates them
// along with the sync_log table. The bulk loader adds ad-hoc tables at
// runtime through EnsureTable.
//
// # Upserts
//
// Writer.WriteBatch deduplicates a batch by key (last write wins), then
// inserts or updates every row in one transaction. Rows that already
// existed are counted as updated, the rest as created. Any row failure rolls
// the whole batch back; DuckDB transaction conflicts are retried.
//
// # Sync log
//
// StartSyncLog and FinishSyncLog record one row per sync session. LastSyncs
// returns the newest entry for each source and backs the status endpoint.
//
// Example:
//
//	db, err := database.New(&cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	spec, _ := database.LookupTable(database.TableGSCSearchQueries)
//	outcome, err := database.NewWriter(db).WriteBatch(ctx, spec, records)
package database
