// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package database

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/tributary/internal/logging"
)

type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.err
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(prev) })
	return &buf
}

func TestCloseWithLog(t *testing.T) {
	t.Run("nil closer", func(t *testing.T) {
		buf := captureLogs(t)
		closeWithLog(nil, "rows")
		if buf.Len() > 0 {
			t.Errorf("unexpected log output: %s", buf.String())
		}
	})

	t.Run("clean close is silent", func(t *testing.T) {
		buf := captureLogs(t)
		c := &mockCloser{}
		closeWithLog(c, "statement")
		if !c.closed {
			t.Error("closer was not closed")
		}
		if buf.Len() > 0 {
			t.Errorf("unexpected log output: %s", buf.String())
		}
	})

	t.Run("close error is logged with type", func(t *testing.T) {
		buf := captureLogs(t)
		closeWithLog(&mockCloser{err: errors.New("disk gone")}, "statement")
		out := buf.String()
		if !strings.Contains(out, "disk gone") || !strings.Contains(out, `"type":"statement"`) {
			t.Errorf("log output = %s", out)
		}
	})
}

func TestCloseQuietly(t *testing.T) {
	closeQuietly(nil)

	c := &mockCloser{err: errors.New("ignored")}
	closeQuietly(c)
	if !c.closed {
		t.Error("closer was not closed")
	}
}

func TestIsTransactionConflict(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("TransactionContext Error: Transaction conflict: cannot update"), true},
		{errors.New("Conflict on update of tuple"), true},
		{errors.New("cannot update a table that has been altered"), true},
		{errors.New("Constraint Error: NOT NULL constraint failed"), false},
	}
	for _, tt := range tests {
		if got := isTransactionConflict(tt.err); got != tt.want {
			t.Errorf("isTransactionConflict(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
