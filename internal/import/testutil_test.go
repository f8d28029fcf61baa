// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package bulkimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	gosync "sync"
	"time"

	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/models"
)

// fakeWriter records batch sizes and fails the batches listed in failBatches
// (1-based, counted across the loader's lifetime).
type fakeWriter struct {
	mu          gosync.Mutex
	failBatches map[int]error
	sizes       []int
	written     []models.SourceRecord
	block       chan struct{}
}

func (w *fakeWriter) WriteBatch(_ context.Context, _ database.TableSpec, records []models.SourceRecord) (models.BatchOutcome, error) {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sizes = append(w.sizes, len(records))
	if err, ok := w.failBatches[len(w.sizes)]; ok {
		return models.BatchOutcome{}, err
	}
	w.written = append(w.written, records...)
	return models.BatchOutcome{Inserted: len(records)}, nil
}

func (w *fakeWriter) batchSizes() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]int(nil), w.sizes...)
}

// sliceSource serves pre-built records; nil entries become row errors.
type sliceSource struct {
	name    string
	spec    database.TableSpec
	records []*models.SourceRecord
	pos     int
}

func (s *sliceSource) Spec() database.TableSpec { return s.spec }
func (s *sliceSource) Name() string             { return s.name }
func (s *sliceSource) Total() int64             { return int64(len(s.records)) }

func (s *sliceSource) Next() (models.SourceRecord, error) {
	if s.pos >= len(s.records) {
		return models.SourceRecord{}, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	if r == nil {
		return models.SourceRecord{}, &RowError{Line: s.pos + 1, Err: errors.New("unusable")}
	}
	return *r, nil
}

func (s *sliceSource) Skip(n int64) (int64, error) {
	remaining := int64(len(s.records) - s.pos)
	if n > remaining {
		n = remaining
	}
	s.pos += int(n)
	return n, nil
}

var ordersSpec = database.TableSpec{
	Name: "legacy_orders",
	Key:  []string{"order_id"},
	Columns: []database.Column{
		database.DimensionColumn("order_id"),
		database.DateColumn("order_date"),
		database.MetricColumn("total"),
	},
}

func orderRecords(n int) []*models.SourceRecord {
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	out := make([]*models.SourceRecord, n)
	for i := range out {
		r := models.NewSourceRecord("", "", day).
			WithDimension("order_id", fmt.Sprintf("ord-%05d", i)).
			WithMetric("total", float64(i))
		out[i] = &r
	}
	return out
}

func newOrderSource(n int) *sliceSource {
	return &sliceSource{name: "orders.csv", spec: ordersSpec, records: orderRecords(n)}
}

func csvInput(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}
