// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

// Package bulkimport loads flat-file exports into the reporting store.
//
// It is the offline counterpart of the sync engine: instead of a connector
// the records come from a CSV file, but they go through the same upsert
// writer, in fixed-size batches, with the same per-batch failure isolation.
//
// # Mapping
//
// Header cells are normalized to snake_case ("Total Sales ($)" becomes
// total_sales). When the mapping names a registered source table, that
// table's key and column kinds apply. Any other table is created from the
// mapping: key columns form the uniqueness constraint, the date column is
// parsed as a calendar day, metric columns as numbers ("$1,234.50" and
// "(12.00)" are understood), and every remaining column is text.
//
// # Failure Accounting
//
// A row that cannot be mapped is counted as failed on its own. A batch the
// writer rejects is counted as failed in full and loading continues with the
// next batch, so imported + failed always equals the rows processed. A load
// succeeds only when nothing failed.
//
// # Progress Tracking
//
// A snapshot is saved after every batch, in BadgerDB when a progress path is
// configured or in memory otherwise. A resumed load skips the rows the
// snapshot already counted, provided the table and input match.
//
// # Example Usage
//
//	src, err := bulkimport.OpenCSV("orders.csv", bulkimport.Mapping{
//	    Table:      "legacy_orders",
//	    Key:        []string{"order_id"},
//	    DateColumn: "order_date",
//	    Metrics:    []string{"total"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
//	loader := bulkimport.NewLoader(database.NewWriter(db), db, progress, 1000)
//	stats, err := loader.Load(ctx, src, bulkimport.LoadOptions{Resume: true})
package bulkimport
