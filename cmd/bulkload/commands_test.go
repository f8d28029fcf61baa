// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tributary/internal/config"
	bulkimport "github.com/tomtom215/tributary/internal/import"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Database: config.DatabaseConfig{
			Path:      filepath.Join(dir, "tributary.duckdb"),
			MaxMemory: "512MB",
			Threads:   2,
		},
		Import: config.ImportConfig{
			BatchSize:    2,
			ProgressPath: filepath.Join(dir, "progress"),
		},
		Logging: config.LoggingConfig{Level: "error", Format: "json"},
	}
}

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&app{
		out:        &out,
		loadConfig: func() (*config.Config, error) { return cfg, nil },
	})
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func decodeSummary(t *testing.T, out string) bulkimport.ProgressSummary {
	t.Helper()
	var s bulkimport.ProgressSummary
	if err := json.NewDecoder(strings.NewReader(out)).Decode(&s); err != nil {
		t.Fatalf("decode summary from %q: %v", out, err)
	}
	return s
}

func TestImportCommand(t *testing.T) {
	cfg := testConfig(t)
	path := writeCSV(t,
		"Order ID,Created At,Total",
		"A-1,2024-01-02,10.50",
		"A-2,2024-01-03,abc",
		"A-3,2024-01-04,(5.00)",
	)

	out, err := execute(t, cfg, "import", path, "--table", "legacy_orders", "--key", "order_id",
		"--date", "created_at", "--metrics", "total")
	if !errors.Is(err, errRowsFailed) {
		t.Fatalf("import error = %v, want errRowsFailed", err)
	}

	s := decodeSummary(t, out)
	if s.Imported != 2 || s.Failed != 1 || s.Processed != 3 {
		t.Errorf("imported=%d failed=%d processed=%d, want 2/1/3", s.Imported, s.Failed, s.Processed)
	}
	if s.Status != "completed_with_failures" {
		t.Errorf("status = %q", s.Status)
	}

	out, err = execute(t, cfg, "progress")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got := decodeSummary(t, out); got.Table != "legacy_orders" || got.Imported != 2 {
		t.Errorf("saved progress = %+v", got)
	}

	if _, err := execute(t, cfg, "reset"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	out, err = execute(t, cfg, "progress")
	if err != nil {
		t.Fatalf("progress after reset: %v", err)
	}
	if strings.TrimSpace(out) != "no saved progress" {
		t.Errorf("progress after reset = %q", out)
	}
}

func TestImportCommandAllRowsSucceed(t *testing.T) {
	cfg := testConfig(t)
	path := writeCSV(t,
		"order_id,total",
		"B-1,1",
		"B-2,2",
		"B-3,3",
	)

	out, err := execute(t, cfg, "import", path, "-t", "legacy_orders", "-k", "order_id", "--metrics", "total", "--batch-size", "10")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if s := decodeSummary(t, out); s.Status != "completed" || s.Imported != 3 {
		t.Errorf("summary = %+v", s)
	}
}

func TestImportCommandArguments(t *testing.T) {
	cfg := testConfig(t)
	path := writeCSV(t, "order_id,total", "C-1,1")

	tests := []struct {
		name string
		args []string
	}{
		{"missing table", []string{"import", path}},
		{"missing file argument", []string{"import", "--table", "legacy_orders"}},
		{"unknown source", []string{"import", path, "--table", "legacy_orders", "--key", "order_id", "--source", "myspace"}},
		{"missing key for new table", []string{"import", path, "--table", "legacy_orders"}},
		{"file not found", []string{"import", filepath.Join(t.TempDir(), "nope.csv"), "--table", "legacy_orders", "--key", "order_id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, cfg, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConfigErrorStopsCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(&app{
		out:        &out,
		loadConfig: func() (*config.Config, error) { return nil, errors.New("bad config") },
	})
	root.SetArgs([]string{"progress"})
	root.SetErr(io.Discard)
	if err := root.Execute(); err == nil || err.Error() != "bad config" {
		t.Errorf("Execute() = %v, want bad config", err)
	}
}
