// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used on the wire and in the store.
const DateLayout = "2006-01-02"

// SyncWindow is an inclusive range of calendar days.
type SyncWindow struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to midnight UTC of its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewSyncWindow builds a window from two instants, truncated to days.
func NewSyncWindow(start, end time.Time) (SyncWindow, error) {
	w := SyncWindow{Start: Day(start), End: Day(end)}
	if w.Start.After(w.End) {
		return SyncWindow{}, fmt.Errorf("window start %s is after end %s", w.StartString(), w.EndString())
	}
	return w, nil
}

// ParseSyncWindow parses YYYY-MM-DD bounds.
func ParseSyncWindow(start, end string) (SyncWindow, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return SyncWindow{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return SyncWindow{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	return NewSyncWindow(s, e)
}

// TrailingWindow returns [today-days, today] relative to now.
func TrailingWindow(now time.Time, days int) SyncWindow {
	end := Day(now)
	return SyncWindow{Start: end.AddDate(0, 0, -days), End: end}
}

// Days returns the number of calendar days covered, inclusive.
func (w SyncWindow) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Contains reports whether t falls on a day inside the window.
func (w SyncWindow) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// IsZero reports whether the window was never set.
func (w SyncWindow) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// EndOfDay returns the last instant of the window's final day.
func (w SyncWindow) EndOfDay() time.Time {
	return w.End.Add(24*time.Hour - time.Nanosecond)
}

func (w SyncWindow) StartString() string { return w.Start.Format(DateLayout) }
func (w SyncWindow) EndString() string   { return w.End.Format(DateLayout) }

func (w SyncWindow) String() string {
	return w.StartString() + ".." + w.EndString()
}
