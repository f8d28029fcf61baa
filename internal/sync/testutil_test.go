// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	gosync "sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/models"
)

const testAccessToken = "test-token"

var (
	testKeyOnce gosync.Once
	testKey     *rsa.PrivateKey
	testKeyPEM  string
)

// testSigningKey returns a process-wide RSA key; generation is slow.
func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
		testKeyPEM = string(pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		}))
	})
	return testKey
}

// testServiceAccountJSON builds service-account credentials whose token
// endpoint is tokenURL.
func testServiceAccountJSON(t *testing.T, tokenURL string) string {
	t.Helper()
	testSigningKey(t)
	b, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"client_email":   "sync@test-project.iam.gserviceaccount.com",
		"private_key":    testKeyPEM,
		"private_key_id": "kid-1",
		"token_uri":      tokenURL,
	})
	if err != nil {
		t.Fatalf("marshal service account: %v", err)
	}
	return string(b)
}

// serveToken answers the JWT bearer grant with a fixed token.
func serveToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != jwtBearerGrant {
		http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"access_token": testAccessToken, "expires_in": 3600, "token_type": "Bearer"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func requireBearer(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "Bearer "+testAccessToken {
		t.Errorf("Authorization header = %q", got)
	}
}

func testDatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 2}
}

// testSettings keeps retries fast.
func testSettings() ClientSettings {
	return ClientSettings{
		RequestTimeout: 5 * time.Second,
		Retry:          RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

// collectPages runs fetch and groups the yielded records by table.
func collectPages(t *testing.T, fetch func(yield func(Page) error) error) map[string][]models.SourceRecord {
	t.Helper()
	out := make(map[string][]models.SourceRecord)
	err := fetch(func(p Page) error {
		if len(p.Records) == 0 {
			t.Errorf("empty page yielded for %s", p.Table)
		}
		out[p.Table] = append(out[p.Table], p.Records...)
		return nil
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	return out
}

func testWindow(t *testing.T, start, end string) models.SyncWindow {
	t.Helper()
	w, err := models.ParseSyncWindow(start, end)
	if err != nil {
		t.Fatalf("ParseSyncWindow: %v", err)
	}
	return w
}

// fakeWriter records batches and fails those listed in failBatches
// (1-based, counted across the run).
type fakeWriter struct {
	mu          gosync.Mutex
	batches     [][]models.SourceRecord
	tables      []string
	failBatches map[int]error
}

func (w *fakeWriter) WriteBatch(_ context.Context, spec database.TableSpec, records []models.SourceRecord) (models.BatchOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, records)
	w.tables = append(w.tables, spec.Name)
	if err, ok := w.failBatches[len(w.batches)]; ok {
		return models.BatchOutcome{}, err
	}
	return models.BatchOutcome{Inserted: len(records)}, nil
}

func (w *fakeWriter) batchSizes() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	sizes := make([]int, len(w.batches))
	for i, b := range w.batches {
		sizes[i] = len(b)
	}
	return sizes
}

type fakeSyncLog struct {
	mu       gosync.Mutex
	startErr error
	started  []database.SyncLogStart
	finished map[string]models.SyncResult
}

func newFakeSyncLog() *fakeSyncLog {
	return &fakeSyncLog{finished: make(map[string]models.SyncResult)}
}

func (l *fakeSyncLog) StartSyncLog(_ context.Context, start database.SyncLogStart) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.startErr != nil {
		return "", l.startErr
	}
	l.started = append(l.started, start)
	return "log-" + string(start.Source), nil
}

func (l *fakeSyncLog) FinishSyncLog(_ context.Context, id string, result models.SyncResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.finished[id]; ok {
		return errors.New("sync log already finished")
	}
	l.finished[id] = result
	return nil
}

// testOptions is a minimal SessionOptions for session tests.
type testOptions struct {
	CommonOptions
	Label string `json:"label,omitempty" validate:"omitempty,max=8"`
}

func (o testOptions) Common() CommonOptions { return o.CommonOptions }

// stubConnector yields canned pages, then returns fetchErr.
type stubConnector struct {
	kind     models.SourceKind
	pages    []Page
	fetchErr error
	testErr  error
	block    chan struct{} // when set, Fetch waits for it to close

	mu       gosync.Mutex
	requests []FetchRequest[testOptions]
}

func (c *stubConnector) Kind() models.SourceKind { return c.kind }

func (c *stubConnector) TestConnection(context.Context) error { return c.testErr }

func (c *stubConnector) Fetch(ctx context.Context, req FetchRequest[testOptions], yield func(Page) error) error {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, p := range c.pages {
		if err := yield(p); err != nil {
			return err
		}
	}
	return c.fetchErr
}

func (c *stubConnector) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// userRecords builds n asana_users records with sequential ids.
func userRecords(prefix string, n int) []models.SourceRecord {
	out := make([]models.SourceRecord, n)
	for i := range out {
		out[i] = models.NewSourceRecord(models.SourceProjectTracker, prefix+string(rune('a'+i)), time.Time{}).
			WithDimension("name", "user")
	}
	return out
}
