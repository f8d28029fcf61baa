// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package api

import (
	"context"
	"time"

	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/models"
)

// maxBodyBytes caps trigger bodies; options documents are tiny.
const maxBodyBytes = 1 << 20

// SyncCoordinator runs sessions. Implemented by sync.Coordinator.
type SyncCoordinator interface {
	RunSource(ctx context.Context, source models.SourceKind, rawOptions []byte) (models.SyncResult, error)
	RunDaily(ctx context.Context) *models.RunReport
	Configured(source models.SourceKind) bool
	InProgress(source models.SourceKind) bool
}

// SyncLogReader reads the latest sync-log entries. Implemented by
// database.DB.
type SyncLogReader interface {
	LastSyncs(ctx context.Context) (map[models.SourceKind]*database.SyncLogEntry, error)
}

// Pinger reports store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the HTTP handlers and their collaborators.
type Handler struct {
	coordinator SyncCoordinator
	syncLog     SyncLogReader
	store       Pinger
	startTime   time.Time
	version     string
}

// NewHandler creates the handler set. syncLog and store may be the same
// *database.DB.
func NewHandler(coordinator SyncCoordinator, syncLog SyncLogReader, store Pinger, version string) *Handler {
	return &Handler{
		coordinator: coordinator,
		syncLog:     syncLog,
		store:       store,
		startTime:   time.Now(),
		version:     version,
	}
}
