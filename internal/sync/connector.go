// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"

	"github.com/tomtom215/tributary/internal/models"
)

// Page is one slice of normalized records bound for a single table. A
// connector yields pages in the order the vendor returned them.
type Page struct {
	Table   string
	Records []models.SourceRecord
}

// FetchRequest is what a session hands its connector.
type FetchRequest[O any] struct {
	Window   models.SyncWindow
	FullSync bool
	Options  O
}

// Connector pulls one source's data. Fetch drains every page before
// returning; yield is called once per page and an error from yield aborts
// the fetch. A failed fetch cannot be resumed and must be restarted.
type Connector[O any] interface {
	Kind() models.SourceKind
	Fetch(ctx context.Context, req FetchRequest[O], yield func(Page) error) error
}

// ConnectionTester is implemented by connectors that can verify their
// credentials cheaply before a run.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// emit sends records as a page unless there are none.
func emit(yield func(Page) error, table string, records []models.SourceRecord) error {
	if len(records) == 0 {
		return nil
	}
	return yield(Page{Table: table, Records: records})
}
