// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package database

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/tributary/internal/models"
)

func TestSyncLog_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	window := models.TrailingWindow(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC), 7)

	id, err := db.StartSyncLog(ctx, SyncLogStart{
		Source: models.SourceWebAnalytics,
		RunID:  "run-1",
		Window: window,
	})
	if err != nil {
		t.Fatalf("StartSyncLog() error = %v", err)
	}

	entry, err := db.LastSync(ctx, models.SourceWebAnalytics)
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil || entry.Status != SyncStatusRunning {
		t.Fatalf("entry = %+v, want running", entry)
	}

	err = db.FinishSyncLog(ctx, id, models.SyncResult{
		Success:        false,
		RecordsSynced:  10,
		RecordsCreated: 6,
		RecordsUpdated: 4,
		Errors:         []string{"batch 2 failed"},
	})
	if err != nil {
		t.Fatalf("FinishSyncLog() error = %v", err)
	}

	entry, err = db.LastSync(ctx, models.SourceWebAnalytics)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != SyncStatusPartial {
		t.Errorf("status = %s, want partial", entry.Status)
	}
	if entry.RecordsSynced != 10 || entry.RecordsCreated != 6 || entry.RecordsUpdated != 4 {
		t.Errorf("counts = %+v", entry)
	}
	if len(entry.Errors) != 1 || entry.Errors[0] != "batch 2 failed" {
		t.Errorf("errors = %v", entry.Errors)
	}
	if entry.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if entry.WindowStart == nil || !entry.WindowStart.Equal(window.Start) {
		t.Errorf("window_start = %v, want %v", entry.WindowStart, window.Start)
	}
	if entry.RunID != "run-1" {
		t.Errorf("run id = %q", entry.RunID)
	}
}

func TestSyncLog_FinishUnknownID(t *testing.T) {
	db := setupTestDB(t)
	if err := db.FinishSyncLog(context.Background(), "missing", models.SyncResult{Success: true}); err == nil {
		t.Fatal("expected error")
	}
}

func TestLastSync_NeverRan(t *testing.T) {
	db := setupTestDB(t)
	entry, err := db.LastSync(context.Background(), models.SourceCommerce)
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Errorf("entry = %+v, want nil", entry)
	}
}

func TestLastSyncs_NewestPerSource(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, src := range []models.SourceKind{models.SourceCommerce, models.SourceCommerce, models.SourceProjectTracker} {
		id, err := db.StartSyncLog(ctx, SyncLogStart{Source: src})
		if err != nil {
			t.Fatal(err)
		}
		if err := db.FinishSyncLog(ctx, id, models.SyncResult{Success: true}); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	latest, err := db.LastSyncs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 2 {
		t.Fatalf("got %d sources, want 2", len(latest))
	}
	if latest[models.SourceCommerce].Status != SyncStatusSuccess {
		t.Errorf("commerce status = %s", latest[models.SourceCommerce].Status)
	}
}
