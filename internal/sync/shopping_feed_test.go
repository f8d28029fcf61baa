// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/database"
)

func shoppingFeedHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			serveToken(w, r)
			return
		}
		requireBearer(t, r)
		switch {
		case strings.HasSuffix(r.URL.Path, "/content/v2.1/4242/products"):
			if r.URL.Query().Get("pageToken") == "" {
				writeJSON(w, map[string]interface{}{
					"resources": []map[string]interface{}{{
						"id": "online:en:US:SKU-1", "offerId": "SKU-1", "title": "Trail Shoe",
						"price":        map[string]string{"value": "1,299.50", "currency": "USD"},
						"productTypes": []string{"Shoes", "Trail"},
						"availability": "in stock",
					}},
					"nextPageToken": "p2",
				})
				return
			}
			writeJSON(w, map[string]interface{}{
				"resources": []map[string]interface{}{{"id": "online:en:US:SKU-2", "offerId": "SKU-2", "title": "Road Shoe"}},
			})
		case strings.HasSuffix(r.URL.Path, "/productstatuses"):
			writeJSON(w, map[string]interface{}{
				"resources": []map[string]interface{}{
					{
						"productId": "online:en:US:SKU-1",
						"destinationStatuses": []map[string]interface{}{
							{"destination": "Shopping", "approvedCountries": []string{"US"}},
							{"destination": "SurfacesAcrossGoogle", "pendingCountries": []string{"US"}},
						},
						"itemLevelIssues": []map[string]string{{"code": "missing_gtin"}, {"code": "image_too_small"}},
					},
					{
						"productId": "online:en:US:SKU-2",
						"destinationStatuses": []map[string]interface{}{
							{"destination": "Shopping", "disapprovedCountries": []string{"US"}},
						},
					},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/reports/search"):
			var req gmcReportRequest
			if err := decodeBody(r, &req); err != nil {
				t.Errorf("decode report request: %v", err)
			}
			if !strings.Contains(req.Query, "BETWEEN '2026-02-01' AND '2026-02-02'") {
				t.Errorf("query = %q", req.Query)
			}
			writeJSON(w, map[string]interface{}{
				"results": []map[string]interface{}{
					{
						"segments": map[string]interface{}{"date": map[string]int{"year": 2026, "month": 2, "day": 1}},
						"metrics": map[string]interface{}{
							"clicks": "15", "impressions": "900", "ctr": 0.0166666, "conversions": 2,
							"conversionValue": map[string]string{"valueMicros": "12500000", "currencyCode": "USD"},
						},
					},
					{
						"segments": map[string]interface{}{
							"date":    map[string]int{"year": 2026, "month": 2, "day": 2},
							"offerId": "SKU-1",
						},
						"metrics": map[string]interface{}{"clicks": "3"},
					},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}
}

func TestShoppingFeed_Fetch(t *testing.T) {
	server := httptest.NewServer(shoppingFeedHandler(t))
	defer server.Close()

	conn, err := NewShoppingFeedConnector(config.ShoppingFeedConfig{
		MerchantID:      "4242",
		CredentialsJSON: testServiceAccountJSON(t, server.URL+"/token"),
		BaseURL:         server.URL,
	}, testSettings())
	if err != nil {
		t.Fatalf("NewShoppingFeedConnector() error = %v", err)
	}

	req := FetchRequest[ShoppingFeedOptions]{
		Window:  testWindow(t, "2026-02-01", "2026-02-02"),
		Options: DefaultShoppingFeedOptions(),
	}
	pages := collectPages(t, func(yield func(Page) error) error {
		return conn.Fetch(context.Background(), req, yield)
	})

	t.Run("products follow page tokens", func(t *testing.T) {
		products := pages[database.TableGMCProducts]
		if len(products) != 2 {
			t.Fatalf("products = %d, want 2", len(products))
		}
		p := products[0]
		checkStringEqual(t, "external id", p.ExternalID, "online:en:US:SKU-1")
		checkStringEqual(t, "product_type", p.Dimension("product_type"), "Shoes, Trail")
		checkStringEqual(t, "currency", p.Dimension("currency"), "USD")
		if p.Metric("price") != 1299.5 {
			t.Errorf("price = %v, want 1299.5", p.Metric("price"))
		}
		if _, ok := products[1].Metrics["price"]; ok {
			t.Error("product without price should not carry a price metric")
		}
	})

	t.Run("statuses summarise destinations", func(t *testing.T) {
		statuses := pages[database.TableGMCProductStatuses]
		if len(statuses) != 2 {
			t.Fatalf("statuses = %d, want 2", len(statuses))
		}
		checkStringEqual(t, "approval", statuses[0].Dimension("approval_status"), "pending")
		checkStringEqual(t, "issues", statuses[0].Dimension("issues"), "image_too_small,missing_gtin")
		checkStringEqual(t, "destinations", statuses[0].Dimension("destinations"), "Shopping,SurfacesAcrossGoogle")
		if statuses[0].Metric("issue_count") != 2 {
			t.Errorf("issue_count = %v", statuses[0].Metric("issue_count"))
		}
		checkStringEqual(t, "approval", statuses[1].Dimension("approval_status"), "disapproved")
	})

	t.Run("performance converts micros", func(t *testing.T) {
		perf := pages[database.TableGMCPerformance]
		if len(perf) != 2 {
			t.Fatalf("performance rows = %d, want 2", len(perf))
		}
		checkStringEqual(t, "offer_id", perf[0].Dimension("offer_id"), gmcAccountOfferID)
		checkStringEqual(t, "date", perf[0].Date.Format("2006-01-02"), "2026-02-01")
		if perf[0].Metric("conversion_value") != 12.5 {
			t.Errorf("conversion_value = %v, want 12.5", perf[0].Metric("conversion_value"))
		}
		if perf[0].Metric("clicks") != 15 || perf[0].Metric("ctr") != 0.016667 {
			t.Errorf("metrics = %v", perf[0].Metrics)
		}
		checkStringEqual(t, "offer_id", perf[1].Dimension("offer_id"), "SKU-1")
	})
}

func TestShoppingFeed_APIErrorAbortsFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			serveToken(w, r)
			return
		}
		http.Error(w, `{"error":{"message":"forbidden"}}`, http.StatusForbidden)
	}))
	defer server.Close()

	conn, err := NewShoppingFeedConnector(config.ShoppingFeedConfig{
		MerchantID:      "4242",
		CredentialsJSON: testServiceAccountJSON(t, server.URL+"/token"),
		BaseURL:         server.URL,
	}, testSettings())
	if err != nil {
		t.Fatal(err)
	}
	err = conn.Fetch(context.Background(), FetchRequest[ShoppingFeedOptions]{
		Window:  testWindow(t, "2026-02-01", "2026-02-01"),
		Options: DefaultShoppingFeedOptions(),
	}, func(Page) error { return nil })
	if err == nil || !strings.HasPrefix(err.Error(), "products: ") || !strings.Contains(err.Error(), "403") {
		t.Errorf("Fetch() error = %v", err)
	}
}
