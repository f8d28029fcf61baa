// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tributary/internal/logging"
	"github.com/tomtom215/tributary/internal/models"
	"github.com/tomtom215/tributary/internal/sync"
	"github.com/tomtom215/tributary/internal/validation"
)

// sourceUsage documents each trigger's JSON body.
var sourceUsage = map[models.SourceKind]string{
	models.SourceSearchAnalytics: "POST with JSON body: { fullSync?: boolean, dateRange?: { startDate, endDate }, " +
		"syncSitePerformance?: boolean, syncQueries?: boolean, syncPages?: boolean, syncDevices?: boolean, syncCountries?: boolean }",
	models.SourceShoppingFeed: "POST with JSON body: { fullSync?: boolean, dateRange?: { startDate, endDate }, " +
		"syncProducts?: boolean, syncProductStatuses?: boolean, syncPerformance?: boolean }",
	models.SourceWebAnalytics: "POST with JSON body: { fullSync?: boolean, dateRange?: { startDate, endDate }, " +
		"syncTraffic?: boolean, syncSources?: boolean, syncPages?: boolean, syncEcommerce?: boolean, syncConversions?: boolean }",
	models.SourceCommerce: "POST with JSON body: { fullSync?: boolean, dateRange?: { startDate, endDate }, " +
		"syncOrders?: boolean, syncProducts?: boolean, syncCustomers?: boolean, limit?: number (1-250) }",
	models.SourceProjectTracker: "POST with JSON body: { fullSync?: boolean, dateRange?: { startDate, endDate }, " +
		"syncProjects?: boolean, syncTasks?: boolean, syncUsers?: boolean }",
}

// notConfiguredResponse is the soft-failure body for a source without
// credentials.
type notConfiguredResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// sourceParam resolves {source}; unknown names get a 404.
func sourceParam(w http.ResponseWriter, r *http.Request) (models.SourceKind, bool) {
	source, err := models.ParseSourceKind(chi.URLParam(r, "source"))
	if err != nil {
		NewResponseWriter(w, r).NotFound(err.Error())
		return "", false
	}
	return source, true
}

// SyncSource handles POST /api/v1/sync/{source}.
func (h *Handler) SyncSource(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	source, ok := sourceParam(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		rw.BadRequest("failed to read request body: " + err.Error())
		return
	}

	// The session owns its timeout; a caller hanging up must not abort a
	// run that is already writing.
	ctx := context.WithoutCancel(r.Context())
	result, err := h.coordinator.RunSource(ctx, source, body)

	var optsErr *sync.OptionsError
	switch {
	case errors.Is(err, sync.ErrNotConfigured):
		rw.JSON(http.StatusOK, notConfiguredResponse{
			Success: false,
			Error:   source.DisplayName() + " sync not configured",
		})
	case errors.Is(err, sync.ErrSyncInProgress):
		rw.Conflict(source.DisplayName() + " sync already in progress")
	case errors.As(err, &optsErr):
		var verr *validation.RequestValidationError
		if errors.As(optsErr, &verr) {
			rw.ValidationError(optsErr.Error(), verr.ToAPIError().Details)
			return
		}
		rw.BadRequest(optsErr.Error())
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Str("source", string(source)).Msg("Sync trigger failed")
		rw.InternalError(err.Error())
	case !result.Success:
		rw.JSON(http.StatusInternalServerError, result)
	default:
		rw.JSON(http.StatusOK, result)
	}
}

// SyncUsage handles GET /api/v1/sync/{source}.
func (h *Handler) SyncUsage(w http.ResponseWriter, r *http.Request) {
	source, ok := sourceParam(w, r)
	if !ok {
		return
	}
	NewResponseWriter(w, r).JSON(http.StatusOK, map[string]interface{}{
		"message":    source.DisplayName() + " Sync API",
		"usage":      sourceUsage[source],
		"configured": h.coordinator.Configured(source),
		"inProgress": h.coordinator.InProgress(source),
	})
}

// SyncDaily handles POST /api/v1/sync/daily and GET /api/cron/daily-sync.
func (h *Handler) SyncDaily(w http.ResponseWriter, r *http.Request) {
	report := h.coordinator.RunDaily(context.WithoutCancel(r.Context()))

	status := http.StatusOK
	if !report.OverallSuccess {
		status = http.StatusMultiStatus
	}
	NewResponseWriter(w, r).JSON(status, report)
}

// sourceStatus is one entry of the status document.
type sourceStatus struct {
	Name       string      `json:"name"`
	Configured bool        `json:"configured"`
	InProgress bool        `json:"inProgress"`
	LastSync   interface{} `json:"lastSync"`
}

// SyncStatus handles GET /api/v1/sync/status.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	last, err := h.syncLog.LastSyncs(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	sources := make(map[models.SourceKind]sourceStatus, len(models.AllSources()))
	for _, k := range models.AllSources() {
		st := sourceStatus{
			Name:       k.DisplayName(),
			Configured: h.coordinator.Configured(k),
			InProgress: h.coordinator.InProgress(k),
		}
		if entry, ok := last[k]; ok {
			st.LastSync = entry
		}
		sources[k] = st
	}
	rw.JSON(http.StatusOK, map[string]interface{}{"sources": sources})
}
