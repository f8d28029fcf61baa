// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

/*
Package sync pulls reporting data from external platforms and upserts it
into the local DuckDB store.

Key Components:

  - Connector: per-platform adapter that streams normalized pages of
    models.SourceRecord values for a date window
  - Session: drives one connector run (window resolution, connection test,
    batched writes, sync log and result message)
  - Runner: type-erased Session that decodes JSON options
  - Coordinator: single-flight guard per source plus the daily multi-source
    run that produces a models.RunReport
  - apiClient: shared HTTP client with rate limiting, retry with
    exponential backoff and a circuit breaker per vendor

Connectors:

  - search_analytics.go: Search Console search analytics (site, query,
    page, device and country breakdowns)
  - shopping_feed.go: Merchant Center products, product statuses and
    performance reports
  - web_analytics.go: GA4 Data API reports (traffic, sources, pages,
    ecommerce, conversions)
  - commerce.go: Shopify Admin REST orders, line items, products, customers
  - project_tracker.go: Asana projects, tasks and users

Google connectors authenticate with a service account using the JWT bearer
grant (google_auth.go). Shopify uses an access token header and Asana a
personal access token.

Failure Handling:

A failed batch is recorded and the session moves on to the next batch. A
fetch failure (authentication, exhausted retries, open circuit) aborts the
session and becomes the only reported error. Records already written stay
written; upserts are idempotent so a rerun converges.

Usage Example:

	runners, err := sync.BuildRunners(cfg, sync.SessionDeps{
	    Writer: database.NewWriter(db),
	    Log:    db,
	})
	if err != nil {
	    return err
	}
	coord := sync.NewCoordinator(sync.CoordinatorConfig{
	    DailySources:  cfg.Sync.DailySourceKinds(),
	    MaxConcurrent: cfg.Sync.MaxConcurrent,
	}, runners...)

	report := coord.RunDaily(ctx)
	fmt.Println(report.OverallSuccess)

Thread Safety:

Coordinator is safe for concurrent use. A second RunSource call for a
source that is already running returns ErrSyncInProgress immediately.
*/
package sync
