// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

/*
Package middleware provides the HTTP middleware shared by every Tributary
route.

Key Components:

  - RequestID: X-Request-ID propagation and correlation IDs for logging
  - PrometheusMetrics: request count and latency per route pattern
  - BearerSecret: shared-secret gate for sync triggers

Middleware Stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Route("/api/v1/sync", func(r chi.Router) {
	    r.Use(middleware.PrometheusMetrics)
	    r.Use(middleware.BearerSecret(cfg.Security.CronSecret, cfg.IsDevelopment()))
	    ...
	})

The secret is compared in constant time. Requests without a valid
"Authorization: Bearer <secret>" header get 401 unless anonymous access was
allowed, which the server only does in development with no secret set.
*/
package middleware
