// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

// Command bulkload imports historical CSV exports into the Tributary
// database using the same upsert semantics as the sync engine.
//
//	bulkload import orders.csv --table legacy_orders --key order_id --date created_at --metrics total,tax
//	bulkload import search.csv --table gsc_search_queries --source gsc
//	bulkload import orders.csv --table legacy_orders --key order_id --resume
//	bulkload progress
//	bulkload reset
//
// Registered tables keep their own schema; any other table is created from
// the CSV header. Progress is kept in Badger under IMPORT_PROGRESS_PATH so
// an interrupted load can be resumed. The command exits non-zero when any
// row failed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/logging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logging.Warn().Err(err).Msg("Could not load .env, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&app{out: os.Stdout, loadConfig: config.LoadForImport})
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
