// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package bulkimport

import (
	"time"
)

// ImportStats holds statistics about a bulk load.
type ImportStats struct {
	// Table is the destination table.
	Table string `json:"table"`

	// Input names the source, usually the CSV path.
	Input string `json:"input"`

	// TotalRecords is the number of data rows in the input (0 if unknown).
	TotalRecords int64 `json:"total_records"`

	// Processed counts rows consumed so far, whether imported or failed.
	Processed int64 `json:"processed"`

	// Imported counts rows written by successful batches.
	Imported int64 `json:"imported"`

	// Failed counts unusable rows plus every row of a failed batch.
	Failed int64 `json:"failed"`

	// FailedBatches counts batches the writer rejected.
	FailedBatches int `json:"failed_batches"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`

	// ResumedFrom is the row offset a resumed load skipped to.
	ResumedFrom int64 `json:"resumed_from,omitempty"`
}

// Success reports whether every row was imported.
func (s *ImportStats) Success() bool {
	return s.Failed == 0
}

// Duration returns the duration of the load.
func (s *ImportStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Progress returns the load progress as a percentage (0-100).
func (s *ImportStats) Progress() float64 {
	if s.TotalRecords == 0 {
		return 0
	}
	return float64(s.Processed) / float64(s.TotalRecords) * 100
}

// RecordsPerSecond returns the load rate.
func (s *ImportStats) RecordsPerSecond() float64 {
	duration := s.Duration().Seconds()
	if duration == 0 {
		return 0
	}
	return float64(s.Processed-s.ResumedFrom) / duration
}

// ProgressSummary is the printable form of ImportStats.
type ProgressSummary struct {
	Status          string    `json:"status"`
	Table           string    `json:"table"`
	Input           string    `json:"input"`
	Progress        float64   `json:"progress"`
	TotalRecords    int64     `json:"total_records"`
	Processed       int64     `json:"processed"`
	Imported        int64     `json:"imported"`
	Failed          int64     `json:"failed"`
	FailedBatches   int       `json:"failed_batches"`
	RecordsPerSec   float64   `json:"records_per_second"`
	ElapsedSeconds  float64   `json:"elapsed_seconds"`
	EstimatedRemain float64   `json:"estimated_remaining_seconds"`
	StartTime       time.Time `json:"start_time"`
}

// ToSummary converts ImportStats to a ProgressSummary with calculated fields.
func (s *ImportStats) ToSummary(running bool) *ProgressSummary {
	summary := &ProgressSummary{
		Table:          s.Table,
		Input:          s.Input,
		Progress:       s.Progress(),
		TotalRecords:   s.TotalRecords,
		Processed:      s.Processed,
		Imported:       s.Imported,
		Failed:         s.Failed,
		FailedBatches:  s.FailedBatches,
		RecordsPerSec:  s.RecordsPerSecond(),
		ElapsedSeconds: s.Duration().Seconds(),
		StartTime:      s.StartTime,
	}

	switch {
	case running:
		summary.Status = "running"
	case s.EndTime.IsZero():
		summary.Status = "interrupted"
	case s.Failed > 0:
		summary.Status = "completed_with_failures"
	default:
		summary.Status = "completed"
	}

	if running && summary.RecordsPerSec > 0 {
		remaining := s.TotalRecords - s.Processed
		summary.EstimatedRemain = float64(remaining) / summary.RecordsPerSec
	}

	return summary
}
