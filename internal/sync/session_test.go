// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/models"
)

var sessionNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func newTestSession(conn *stubConnector, writer BatchWriter, log SyncLog) *Session[testOptions] {
	s := NewSession[testOptions](conn, writer, log, SessionConfig{
		BatchSize:     2,
		TrailingDays:  7,
		FullSyncStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	s.now = func() time.Time { return sessionNow }
	return s
}

func usersPage(prefix string, n int) Page {
	return Page{Table: database.TableAsanaUsers, Records: userRecords(prefix, n)}
}

func TestSession_Success(t *testing.T) {
	conn := &stubConnector{kind: models.SourceProjectTracker, pages: []Page{usersPage("a", 3), usersPage("b", 2)}}
	writer := &fakeWriter{}
	log := newFakeSyncLog()

	result := newTestSession(conn, writer, log).Run(context.Background(), testOptions{})

	if !result.Success || len(result.Errors) != 0 {
		t.Fatalf("result = %+v", result)
	}
	checkIntEqual(t, "RecordsSynced", result.RecordsSynced, 5)
	checkIntEqual(t, "RecordsCreated", result.RecordsCreated, 5)
	checkStringEqual(t, "Message", result.Message, "Successfully synced 5 records in 0.0s")
	checkStringEqual(t, "SyncID", result.SyncID, "log-project-tracker")

	sizes := writer.batchSizes()
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 1 || sizes[2] != 2 {
		t.Errorf("batch sizes = %v, want [2 1 2]", sizes)
	}
	if logged, ok := log.finished["log-project-tracker"]; !ok || !logged.Success {
		t.Errorf("sync log not finished with success: %+v", log.finished)
	}
}

func TestSession_DefaultTrailingWindow(t *testing.T) {
	conn := &stubConnector{kind: models.SourceCommerce}
	log := newFakeSyncLog()
	newTestSession(conn, &fakeWriter{}, log).Run(context.Background(), testOptions{})

	if conn.fetchCount() != 1 {
		t.Fatalf("fetch calls = %d", conn.fetchCount())
	}
	w := conn.requests[0].Window
	checkStringEqual(t, "window", w.String(), "2026-03-03..2026-03-10")
	if conn.requests[0].FullSync {
		t.Error("FullSync should be false")
	}
	if len(log.started) != 1 || log.started[0].Window != w {
		t.Errorf("sync log window = %+v", log.started)
	}
}

func TestSession_ResolveWindow(t *testing.T) {
	s := newTestSession(&stubConnector{kind: models.SourceCommerce}, &fakeWriter{}, newFakeSyncLog())

	tests := []struct {
		name string
		opts CommonOptions
		want string
	}{
		{"trailing", CommonOptions{}, "2026-03-03..2026-03-10"},
		{"explicit", CommonOptions{DateRange: &DateRange{StartDate: "2026-02-01", EndDate: "2026-02-14"}}, "2026-02-01..2026-02-14"},
		{"full sync wins over range", CommonOptions{FullSync: true, DateRange: &DateRange{StartDate: "2026-02-01", EndDate: "2026-02-14"}}, "2024-01-01..2026-03-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := s.ResolveWindow(tt.opts)
			if err != nil {
				t.Fatalf("ResolveWindow() error = %v", err)
			}
			checkStringEqual(t, "window", w.String(), tt.want)
		})
	}
}

func TestSession_BatchFailureIsIsolated(t *testing.T) {
	conn := &stubConnector{kind: models.SourceProjectTracker, pages: []Page{usersPage("a", 3), usersPage("b", 2)}}
	writer := &fakeWriter{failBatches: map[int]error{2: errors.New("constraint violated")}}

	result := newTestSession(conn, writer, newFakeSyncLog()).Run(context.Background(), testOptions{})

	if result.Success {
		t.Fatal("expected failure")
	}
	if len(writer.batchSizes()) != 3 {
		t.Errorf("later batches should still run, got %v", writer.batchSizes())
	}
	checkIntEqual(t, "RecordsSynced", result.RecordsSynced, 4)
	if len(result.Errors) != 1 || result.Errors[0] != "asana_users batch 2 (1 records): constraint violated" {
		t.Errorf("Errors = %q", result.Errors)
	}
	checkStringEqual(t, "Message", result.Message, "Partially synced 4 records in 0.0s with 1 errors")
}

func TestSession_FetchFailureIsSoleError(t *testing.T) {
	conn := &stubConnector{
		kind:     models.SourceProjectTracker,
		pages:    []Page{usersPage("a", 3)},
		fetchErr: errors.New("tasks: project-tracker API returned status 500"),
	}
	writer := &fakeWriter{failBatches: map[int]error{1: errors.New("disk full")}}
	log := newFakeSyncLog()

	result := newTestSession(conn, writer, log).Run(context.Background(), testOptions{})

	if result.Success {
		t.Fatal("expected failure")
	}
	if len(result.Errors) != 1 || result.Errors[0] != conn.fetchErr.Error() {
		t.Errorf("Errors = %q, want only the fetch error", result.Errors)
	}
	checkIntEqual(t, "RecordsSynced", result.RecordsSynced, 1)
	if !strings.HasPrefix(result.Message, "Sync failed: ") {
		t.Errorf("Message = %q", result.Message)
	}
	if _, ok := log.finished["log-project-tracker"]; !ok {
		t.Error("sync log should be finished after a failed fetch")
	}
}

func TestSession_ConnectionFailure(t *testing.T) {
	conn := &stubConnector{kind: models.SourceCommerce, testErr: errors.New("401 unauthorized")}
	writer := &fakeWriter{}

	result := newTestSession(conn, writer, newFakeSyncLog()).Run(context.Background(), testOptions{})

	if result.Success || len(result.Errors) != 1 {
		t.Fatalf("result = %+v", result)
	}
	checkStringEqual(t, "error", result.Errors[0], "Shopify connection failed: 401 unauthorized")
	if conn.fetchCount() != 0 || len(writer.batchSizes()) != 0 {
		t.Error("nothing should be fetched or written after a failed connection test")
	}
}

func TestSession_SyncLogFailure(t *testing.T) {
	conn := &stubConnector{kind: models.SourceCommerce, pages: []Page{usersPage("a", 1)}}
	log := newFakeSyncLog()
	log.startErr = errors.New("database is locked")

	result := newTestSession(conn, &fakeWriter{}, log).Run(context.Background(), testOptions{})

	if result.Success {
		t.Fatal("expected failure")
	}
	checkStringEqual(t, "Message", result.Message, "Sync failed to start")
	if len(result.Errors) != 1 || result.Errors[0] != "failed to create sync log: database is locked" {
		t.Errorf("Errors = %q", result.Errors)
	}
	if conn.fetchCount() != 0 {
		t.Error("connector should not run without a sync log")
	}
}

func TestSession_ZeroRecordsIsSuccess(t *testing.T) {
	result := newTestSession(&stubConnector{kind: models.SourceWebAnalytics}, &fakeWriter{}, newFakeSyncLog()).
		Run(context.Background(), testOptions{})
	if !result.Success || result.RecordsSynced != 0 {
		t.Errorf("result = %+v", result)
	}
	checkStringEqual(t, "Message", result.Message, "Successfully synced 0 records in 0.0s")
}

func TestSession_UnknownTableFails(t *testing.T) {
	conn := &stubConnector{kind: models.SourceCommerce, pages: []Page{{Table: "nope", Records: userRecords("a", 1)}}}
	result := newTestSession(conn, &fakeWriter{}, newFakeSyncLog()).Run(context.Background(), testOptions{})
	if result.Success || len(result.Errors) != 1 || !strings.Contains(result.Errors[0], `unknown table "nope"`) {
		t.Errorf("result = %+v", result)
	}
}

func TestSession_Timeout(t *testing.T) {
	conn := &stubConnector{kind: models.SourceCommerce, block: make(chan struct{})}
	log := newFakeSyncLog()
	s := newTestSession(conn, &fakeWriter{}, log)
	s.cfg.Timeout = 20 * time.Millisecond

	result := s.Run(context.Background(), testOptions{})
	if result.Success || len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "deadline exceeded") {
		t.Errorf("result = %+v", result)
	}
	if _, ok := log.finished["log-commerce"]; !ok {
		t.Error("sync log should be finished after a timeout")
	}
}

// Rerunning the same window against the real store must converge: the
// second run updates rather than duplicates.
func TestSession_RerunIsIdempotent(t *testing.T) {
	db, err := database.New(testDatabaseConfig())
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	defer db.Close()

	conn := &stubConnector{kind: models.SourceProjectTracker, pages: []Page{usersPage("a", 3)}}
	s := newTestSession(conn, database.NewWriter(db), db)

	first := s.Run(context.Background(), testOptions{})
	second := s.Run(context.Background(), testOptions{})

	if !first.Success || !second.Success {
		t.Fatalf("runs = %+v / %+v", first, second)
	}
	checkIntEqual(t, "first created", first.RecordsCreated, 3)
	checkIntEqual(t, "second created", second.RecordsCreated, 0)
	checkIntEqual(t, "second updated", second.RecordsUpdated, 3)

	n, err := db.CountRows(context.Background(), database.TableAsanaUsers)
	if err != nil {
		t.Fatal(err)
	}
	checkIntEqual(t, "rows", n, 3)
}

// sitePerformancePage builds one gsc_site_performance row per day of w.
func sitePerformancePage(w models.SyncWindow) Page {
	var records []models.SourceRecord
	for day := w.Start; !day.After(w.End); day = day.AddDate(0, 0, 1) {
		records = append(records, models.NewSourceRecord(models.SourceSearchAnalytics, "", day).
			WithMetric("clicks", 10).
			WithMetric("impressions", 200))
	}
	return Page{Table: database.TableGSCSitePerformance, Records: records}
}

// Consecutive daily runs re-fetch overlapping trailing windows: only the
// newly covered day is created, every overlapping day is overwritten.
func TestSession_OverlappingWindows(t *testing.T) {
	db, err := database.New(testDatabaseConfig())
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	defer db.Close()

	conn := &stubConnector{kind: models.SourceSearchAnalytics}
	s := newTestSession(conn, database.NewWriter(db), db)

	firstWindow, err := s.ResolveWindow(CommonOptions{})
	if err != nil {
		t.Fatal(err)
	}
	conn.pages = []Page{sitePerformancePage(firstWindow)}
	first := s.Run(context.Background(), testOptions{})

	s.now = func() time.Time { return sessionNow.AddDate(0, 0, 1) }
	secondWindow, err := s.ResolveWindow(CommonOptions{})
	if err != nil {
		t.Fatal(err)
	}
	checkStringEqual(t, "second window", secondWindow.String(), "2026-03-04..2026-03-11")
	conn.pages = []Page{sitePerformancePage(secondWindow)}
	second := s.Run(context.Background(), testOptions{})

	if !first.Success || !second.Success {
		t.Fatalf("runs = %+v / %+v", first, second)
	}
	checkIntEqual(t, "first created", first.RecordsCreated, 8)
	checkIntEqual(t, "first updated", first.RecordsUpdated, 0)
	checkIntEqual(t, "second created", second.RecordsCreated, 1)
	checkIntEqual(t, "second updated", second.RecordsUpdated, 7)
	checkIntEqual(t, "second synced", second.RecordsSynced, 8)

	n, err := db.CountRows(context.Background(), database.TableGSCSitePerformance)
	if err != nil {
		t.Fatal(err)
	}
	checkIntEqual(t, "rows", n, 9)
}
