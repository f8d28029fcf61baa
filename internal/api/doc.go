// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

// Package api exposes the sync engine over HTTP using the Chi router.
//
// Routes:
//
//	GET  /health                   store connectivity and configured sources
//	GET  /metrics                  Prometheus exposition
//	POST /api/v1/sync/{source}     run one source with optional JSON options
//	GET  /api/v1/sync/{source}     usage document for that source
//	POST /api/v1/sync/daily        run every daily source
//	GET  /api/cron/daily-sync      same as above, for cron callers
//	GET  /api/v1/sync/status       last sync-log entry per source
//
// Every sync route sits behind the CRON_SECRET bearer check.
//
// Status codes for a single-source trigger:
//
//	200  the session succeeded, or the source is not configured
//	     ({"success":false,"error":"Shopify sync not configured"})
//	400  the body is not valid JSON or fails validation
//	409  the same source is already syncing
//	500  the session ran and failed; the body is the full result
//
// A daily run answers 200 when every source succeeded and 207 otherwise,
// always with the full per-source breakdown.
package api
