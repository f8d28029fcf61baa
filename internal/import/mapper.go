// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package bulkimport

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/models"
	"github.com/tomtom215/tributary/internal/validation"
)

// Mapping describes how CSV columns land in a table. For a registered
// source table only Table is needed; the table's own key and column kinds
// apply. Any other table is created from the mapping.
type Mapping struct {
	Table      string            `json:"table" validate:"required,identifier"`
	Key        []string          `json:"key" validate:"omitempty,dive,identifier"`
	DateColumn string            `json:"date_column" validate:"omitempty,identifier"`
	Metrics    []string          `json:"metrics" validate:"omitempty,dive,identifier"`
	Source     models.SourceKind `json:"source" validate:"omitempty,sourcekind"`
}

// Resolve validates the mapping against a normalized header and returns the
// destination table spec.
func (m Mapping) Resolve(header []string) (database.TableSpec, error) {
	if verr := validation.ValidateStruct(&m); verr != nil {
		return database.TableSpec{}, fmt.Errorf("invalid mapping: %w", verr)
	}

	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}

	if spec, ok := database.LookupTable(m.Table); ok {
		for _, k := range spec.Key {
			if !present[k] {
				return database.TableSpec{}, fmt.Errorf("input has no %q column for key of %s", k, spec.Name)
			}
		}
		return spec, nil
	}

	if len(m.Key) == 0 {
		return database.TableSpec{}, fmt.Errorf("table %s is not a source table; a key is required", m.Table)
	}
	metrics := make(map[string]bool, len(m.Metrics))
	for _, name := range m.Metrics {
		metrics[name] = true
	}
	for _, name := range append(append([]string{}, m.Key...), m.Metrics...) {
		if !present[name] {
			return database.TableSpec{}, fmt.Errorf("input has no %q column", name)
		}
	}
	if m.DateColumn != "" && !present[m.DateColumn] {
		return database.TableSpec{}, fmt.Errorf("input has no %q date column", m.DateColumn)
	}

	spec := database.TableSpec{Name: m.Table, Key: m.Key}
	for _, h := range header {
		switch {
		case h == m.DateColumn:
			spec.Columns = append(spec.Columns, database.DateColumn(h))
		case metrics[h]:
			spec.Columns = append(spec.Columns, database.MetricColumn(h))
		default:
			spec.Columns = append(spec.Columns, database.DimensionColumn(h))
		}
	}
	if err := spec.Validate(); err != nil {
		return database.TableSpec{}, err
	}
	return spec, nil
}

// rowMapper turns CSV rows into SourceRecords for one spec.
type rowMapper struct {
	spec   database.TableSpec
	source models.SourceKind
	index  map[string]int
}

func newRowMapper(spec database.TableSpec, source models.SourceKind, header []string) *rowMapper {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	return &rowMapper{spec: spec, source: source, index: index}
}

// toRecord maps one row. Columns absent from the input stay unset; key
// columns must be present and non-empty.
func (m *rowMapper) toRecord(row []string) (models.SourceRecord, error) {
	r := models.NewSourceRecord(m.source, "", time.Time{})
	for _, c := range m.spec.Columns {
		i, ok := m.index[c.Name]
		if !ok || i >= len(row) {
			continue
		}
		raw := strings.TrimSpace(row[i])
		if raw == "" {
			if m.isKey(c.Name) {
				return models.SourceRecord{}, fmt.Errorf("key column %s is empty", c.Name)
			}
			continue
		}

		switch c.Kind {
		case database.ColumnDate:
			d, err := parseDate(raw)
			if err != nil {
				return models.SourceRecord{}, fmt.Errorf("column %s: %w", c.Name, err)
			}
			r.Date = models.Day(d)
		case database.ColumnExternalID:
			r.ExternalID = raw
		case database.ColumnMetric:
			v, ok, err := parseMetric(raw)
			if err != nil {
				return models.SourceRecord{}, fmt.Errorf("column %s: %w", c.Name, err)
			}
			if ok {
				r.Metrics[sourceKey(c)] = v
			}
		default:
			r.Dimensions[sourceKey(c)] = raw
		}
	}
	return r, nil
}

func (m *rowMapper) isKey(name string) bool {
	for _, k := range m.spec.Key {
		if k == name {
			return true
		}
	}
	return false
}

func sourceKey(c database.Column) string {
	if c.Source != "" {
		return c.Source
	}
	return c.Name
}

var dateLayouts = []string{models.DateLayout, "20060102", "1/2/2006", time.RFC3339, "2006-01-02 15:04:05"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// parseMetric parses spreadsheet-style numbers: "$1,234.50", "(12.00)" for
// negatives, "12%" as 12. A bare "-" or "N/A" is reported as absent.
func parseMetric(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "-", "N/A", "NA", "NULL":
		return 0, false, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.Map(func(r rune) rune {
		if r == '$' || r == ',' || r == '%' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false, fmt.Errorf("invalid number %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), true, nil
}

// normalizeHeader converts a header cell to snake_case: "Total Sales ($)"
// becomes "total_sales".
func normalizeHeader(h string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}
