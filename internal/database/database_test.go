// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package database

import (
	"context"
	"testing"

	"github.com/tomtom215/tributary/internal/config"
)

// testDBSemaphore limits concurrent DuckDB instances in tests; CGO-heavy
// parallel opens exhaust memory on small CI runners.
var testDBSemaphore = make(chan struct{}, 2)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func TestNew_CreatesSourceTables(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, spec := range SourceTables() {
		n, err := db.CountRows(ctx, spec.Name)
		if err != nil {
			t.Errorf("CountRows(%s) error = %v", spec.Name, err)
			continue
		}
		if n != 0 {
			t.Errorf("CountRows(%s) = %d, want 0", spec.Name, n)
		}
	}
	if _, err := db.CountRows(ctx, "sync_log"); err != nil {
		t.Errorf("sync_log missing: %v", err)
	}
}

func TestEnsureTable_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	spec, _ := LookupTable(TableGSCSearchQueries)
	for i := 0; i < 2; i++ {
		if err := db.EnsureTable(context.Background(), spec); err != nil {
			t.Fatalf("EnsureTable() pass %d error = %v", i, err)
		}
	}
}

func TestCountRows_RejectsBadIdentifier(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.CountRows(context.Background(), "users; DROP TABLE sync_log"); err == nil {
		t.Fatal("expected identifier error")
	}
}

func TestPing(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
