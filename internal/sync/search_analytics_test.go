// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"

	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/database"
)

type gscServer struct {
	t  *testing.T
	mu gosync.Mutex
	// requested dimension sets, keyed by the joined dimensions
	queries map[string][]gscQueryRequest
}

func (s *gscServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/token":
			serveToken(w, r)
		case strings.HasSuffix(r.URL.Path, "/searchAnalytics/query"):
			requireBearer(s.t, r)
			var req gscQueryRequest
			if err := decodeBody(r, &req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			key := strings.Join(req.Dimensions, ",")
			s.mu.Lock()
			s.queries[key] = append(s.queries[key], req)
			s.mu.Unlock()
			writeJSON(w, map[string]interface{}{"rows": gscRows(req)})
		case strings.HasPrefix(r.URL.Path, "/webmasters/v3/sites/"):
			requireBearer(s.t, r)
			writeJSON(w, map[string]string{"siteUrl": "sc-domain:example.com"})
		default:
			http.NotFound(w, r)
		}
	}
}

// gscRows returns a full first page and a short second page for site
// totals, and a single row for breakdowns.
func gscRows(req gscQueryRequest) []map[string]interface{} {
	row := func(keys ...string) map[string]interface{} {
		return map[string]interface{}{
			"keys": keys, "clicks": 12, "impressions": 340, "ctr": 0.035294117, "position": 4.56789,
		}
	}
	if len(req.Dimensions) == 1 {
		n := 2
		if req.StartRow == 0 {
			n = req.RowLimit
		}
		rows := make([]map[string]interface{}, n)
		for i := range rows {
			rows[i] = row("2026-03-01")
		}
		return rows
	}
	return []map[string]interface{}{row("2026-03-02", "best running shoes")}
}

func newGSCTestConnector(t *testing.T) (*SearchAnalyticsConnector, *gscServer) {
	t.Helper()
	gs := &gscServer{t: t, queries: make(map[string][]gscQueryRequest)}
	server := httptest.NewServer(gs.handler())
	t.Cleanup(server.Close)

	conn, err := NewSearchAnalyticsConnector(config.SearchAnalyticsConfig{
		SiteURL:         "sc-domain:example.com",
		CredentialsJSON: testServiceAccountJSON(t, server.URL+"/token"),
		BaseURL:         server.URL,
	}, testSettings())
	if err != nil {
		t.Fatalf("NewSearchAnalyticsConnector() error = %v", err)
	}
	return conn, gs
}

func TestSearchAnalytics_NotConfigured(t *testing.T) {
	_, err := NewSearchAnalyticsConnector(config.SearchAnalyticsConfig{SiteURL: "sc-domain:example.com"}, testSettings())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestSearchAnalytics_FetchPagesByStartRow(t *testing.T) {
	conn, gs := newGSCTestConnector(t)
	if err := conn.TestConnection(context.Background()); err != nil {
		t.Fatalf("TestConnection() error = %v", err)
	}

	opts := SearchAnalyticsOptions{SyncSitePerformance: true, SyncQueries: true}
	window := testWindow(t, "2026-03-01", "2026-03-07")
	pages := collectPages(t, func(yield func(Page) error) error {
		return conn.Fetch(context.Background(), FetchRequest[SearchAnalyticsOptions]{Window: window, Options: opts}, yield)
	})

	site := pages[database.TableGSCSitePerformance]
	if len(site) != gscSmallRowLimit+2 {
		t.Errorf("site rows = %d, want %d", len(site), gscSmallRowLimit+2)
	}
	siteReqs := gs.queries["date"]
	if len(siteReqs) != 2 || siteReqs[1].StartRow != gscSmallRowLimit {
		t.Fatalf("site requests = %+v", siteReqs)
	}
	if siteReqs[0].StartDate != "2026-03-01" || siteReqs[0].EndDate != "2026-03-07" || siteReqs[0].DataState != "final" {
		t.Errorf("request window = %+v", siteReqs[0])
	}

	queries := pages[database.TableGSCSearchQueries]
	if len(queries) != 1 {
		t.Fatalf("query rows = %d, want 1", len(queries))
	}
	q := queries[0]
	checkStringEqual(t, "query", q.Dimension("query"), "best running shoes")
	checkStringEqual(t, "date", q.Date.Format("2006-01-02"), "2026-03-02")
	if q.Metric("ctr") != 0.035294 || q.Metric("position") != 4.57 || q.Metric("clicks") != 12 {
		t.Errorf("metrics = %v", q.Metrics)
	}

	for _, dims := range []string{"date,page", "date,device", "date,country"} {
		if len(gs.queries[dims]) != 0 {
			t.Errorf("disabled report %s was requested", dims)
		}
	}
}
