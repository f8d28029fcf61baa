// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// BatchOutcome is what the writer reports for one committed batch.
type BatchOutcome struct {
	Inserted int
	Updated  int
}

// Total returns the number of rows the batch touched.
func (b BatchOutcome) Total() int {
	return b.Inserted + b.Updated
}

// SyncResult is the terminal snapshot of one session run. Sessions build it
// once at the end of a run and never mutate it afterwards.
type SyncResult struct {
	Success        bool
	SyncID         string
	RecordsSynced  int
	RecordsCreated int
	RecordsUpdated int
	Errors         []string
	Duration       time.Duration
	Message        string
}

type syncResultJSON struct {
	Success        bool     `json:"success"`
	SyncID         string   `json:"syncId,omitempty"`
	RecordsSynced  int      `json:"recordsSynced"`
	RecordsCreated int      `json:"recordsCreated"`
	RecordsUpdated int      `json:"recordsUpdated"`
	Errors         []string `json:"errors,omitempty"`
	Duration       int64    `json:"duration"` // milliseconds
	Message        string   `json:"message,omitempty"`
}

// MarshalJSON renders the result in the trigger API shape.
func (r SyncResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(syncResultJSON{
		Success:        r.Success,
		SyncID:         r.SyncID,
		RecordsSynced:  r.RecordsSynced,
		RecordsCreated: r.RecordsCreated,
		RecordsUpdated: r.RecordsUpdated,
		Errors:         r.Errors,
		Duration:       r.Duration.Milliseconds(),
		Message:        r.Message,
	})
}

// UnmarshalJSON accepts the trigger API shape.
func (r *SyncResult) UnmarshalJSON(data []byte) error {
	var raw syncResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = SyncResult{
		Success:        raw.Success,
		SyncID:         raw.SyncID,
		RecordsSynced:  raw.RecordsSynced,
		RecordsCreated: raw.RecordsCreated,
		RecordsUpdated: raw.RecordsUpdated,
		Errors:         raw.Errors,
		Duration:       time.Duration(raw.Duration) * time.Millisecond,
		Message:        raw.Message,
	}
	return nil
}

// SourceStatus is the terminal state of one source within a coordinator run.
type SourceStatus string

const (
	StatusSucceeded SourceStatus = "succeeded"
	StatusFailed    SourceStatus = "failed"
	StatusSkipped   SourceStatus = "skipped" // not configured
)

// NotConfiguredError is the error text reported for skipped sources.
const NotConfiguredError = "not configured"

// SourceOutcome is either a session result or a configuration error.
type SourceOutcome struct {
	Source SourceKind
	Status SourceStatus
	Result *SyncResult
	Error  string
}

// Skipped builds the outcome for a source without credentials.
func Skipped(source SourceKind) SourceOutcome {
	return SourceOutcome{Source: source, Status: StatusSkipped, Error: NotConfiguredError}
}

// Completed builds the outcome for a source whose session ran.
func Completed(source SourceKind, result SyncResult) SourceOutcome {
	status := StatusSucceeded
	if !result.Success {
		status = StatusFailed
	}
	return SourceOutcome{Source: source, Status: status, Result: &result}
}

// Success reports whether the source ran and succeeded.
func (o SourceOutcome) Success() bool {
	return o.Result != nil && o.Result.Success
}

// MarshalJSON renders a session result directly, or {success:false,error}
// for a skipped source.
func (o SourceOutcome) MarshalJSON() ([]byte, error) {
	if o.Result != nil {
		return o.Result.MarshalJSON()
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{Success: false, Error: o.Error})
}

// RunReport aggregates one coordinator run.
type RunReport struct {
	RunID          string
	Timestamp      time.Time
	PerSource      map[SourceKind]SourceOutcome
	OverallSuccess bool
	Duration       time.Duration
}

// NewRunReport starts an empty report.
func NewRunReport(runID string, ts time.Time) *RunReport {
	return &RunReport{
		RunID:     runID,
		Timestamp: ts,
		PerSource: make(map[SourceKind]SourceOutcome),
	}
}

// Record stores a source outcome and recomputes the overall flag. A run with
// no sources is not successful.
func (r *RunReport) Record(o SourceOutcome) {
	r.PerSource[o.Source] = o
	r.OverallSuccess = len(r.PerSource) > 0
	for _, outcome := range r.PerSource {
		if !outcome.Success() {
			r.OverallSuccess = false
			break
		}
	}
}

// Sources returns the reported kinds in stable order.
func (r *RunReport) Sources() []SourceKind {
	kinds := make([]SourceKind, 0, len(r.PerSource))
	for k := range r.PerSource {
		kinds = append(kinds, k)
	}
	order := make(map[SourceKind]int)
	for i, k := range AllSources() {
		order[k] = i
	}
	sort.Slice(kinds, func(i, j int) bool {
		oi, iok := order[kinds[i]]
		oj, jok := order[kinds[j]]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return kinds[i] < kinds[j]
	})
	return kinds
}

// Errors flattens every skipped or failed source into "source: reason" lines.
func (r *RunReport) Errors() []string {
	var errs []string
	for _, k := range r.Sources() {
		o := r.PerSource[k]
		switch {
		case o.Result == nil:
			errs = append(errs, fmt.Sprintf("%s: %s", k, o.Error))
		case !o.Result.Success:
			if len(o.Result.Errors) == 0 {
				errs = append(errs, fmt.Sprintf("%s: %s", k, o.Result.Message))
			}
			for _, e := range o.Result.Errors {
				errs = append(errs, fmt.Sprintf("%s: %s", k, e))
			}
		}
	}
	return errs
}

// MarshalJSON renders {success, runId, timestamp, results, errors, duration}.
func (r *RunReport) MarshalJSON() ([]byte, error) {
	results := make(map[SourceKind]SourceOutcome, len(r.PerSource))
	for k, v := range r.PerSource {
		results[k] = v
	}
	return json.Marshal(struct {
		Success   bool                         `json:"success"`
		RunID     string                       `json:"runId"`
		Timestamp string                       `json:"timestamp"`
		Results   map[SourceKind]SourceOutcome `json:"results"`
		Errors    []string                     `json:"errors,omitempty"`
		Duration  int64                        `json:"duration"`
	}{
		Success:   r.OverallSuccess,
		RunID:     r.RunID,
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
		Results:   results,
		Errors:    r.Errors(),
		Duration:  r.Duration.Milliseconds(),
	})
}
