// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package database

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tomtom215/tributary/internal/models"
)

// ColumnKind says where a column's value comes from on a SourceRecord.
type ColumnKind int

const (
	ColumnDate       ColumnKind = iota // SourceRecord.Date, DATE
	ColumnExternalID                   // SourceRecord.ExternalID, VARCHAR
	ColumnDimension                    // SourceRecord.Dimensions[Source], VARCHAR
	ColumnMetric                       // SourceRecord.Metrics[Source], DOUBLE
)

func (k ColumnKind) sqlType() string {
	switch k {
	case ColumnDate:
		return "DATE"
	case ColumnMetric:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}

// Column maps one destination column.
type Column struct {
	Name    string
	Kind    ColumnKind
	Source  string // dimension/metric key on the record; defaults to Name
	Default string // dimension value stored when the record has none
}

func (c Column) sourceKey() string {
	if c.Source != "" {
		return c.Source
	}
	return c.Name
}

func DateColumn(name string) Column       { return Column{Name: name, Kind: ColumnDate} }
func ExternalIDColumn(name string) Column { return Column{Name: name, Kind: ColumnExternalID} }
func DimensionColumn(name string) Column  { return Column{Name: name, Kind: ColumnDimension} }
func MetricColumn(name string) Column     { return Column{Name: name, Kind: ColumnMetric} }

// DimensionWithDefault stores def when the record leaves the dimension empty.
func DimensionWithDefault(name, def string) Column {
	return Column{Name: name, Kind: ColumnDimension, Default: def}
}

// TableSpec describes a destination table. Key lists the dedup key columns;
// the store enforces them as the primary key.
type TableSpec struct {
	Name    string
	Key     []string
	Columns []Column
}

// syncedAtColumn is appended to every table and refreshed on every write.
const syncedAtColumn = "synced_at"

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

func validateIdentifier(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

// Validate checks identifiers and that every key column exists.
func (t TableSpec) Validate() error {
	if err := validateIdentifier(t.Name); err != nil {
		return fmt.Errorf("table: %w", err)
	}
	if len(t.Key) == 0 {
		return fmt.Errorf("table %s has no key columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if err := validateIdentifier(c.Name); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		if c.Name == syncedAtColumn {
			return fmt.Errorf("table %s: column %s is reserved", t.Name, syncedAtColumn)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %s", t.Name, c.Name)
		}
		seen[c.Name] = true
	}
	for _, k := range t.Key {
		if !seen[k] {
			return fmt.Errorf("table %s: key column %s is not defined", t.Name, k)
		}
	}
	return nil
}

// Column returns the named column.
func (t TableSpec) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (t TableSpec) isKey(name string) bool {
	for _, k := range t.Key {
		if k == name {
			return true
		}
	}
	return false
}

// CreateTableSQL renders the CREATE TABLE IF NOT EXISTS statement.
func (t TableSpec) CreateTableSQL() (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(quoteIdent(t.Name))
	b.WriteString(" (\n")
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "\t%s %s", quoteIdent(c.Name), c.Kind.sqlType())
		if t.isKey(c.Name) {
			b.WriteString(" NOT NULL")
		}
		b.WriteString(",\n")
	}
	fmt.Fprintf(&b, "\t%s TIMESTAMP NOT NULL,\n", syncedAtColumn)
	fmt.Fprintf(&b, "\tPRIMARY KEY (%s)\n)", joinIdents(t.Key))
	return b.String(), nil
}

// UpsertSQL renders the single-row INSERT ... ON CONFLICT statement.
func (t TableSpec) UpsertSQL() string {
	names := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	names = append(names, syncedAtColumn)

	updates := make([]string, 0, len(names))
	for _, n := range names {
		if t.isKey(n) {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoteIdent(n), quoteIdent(n)))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		quoteIdent(t.Name), joinIdents(names), placeholders, joinIdents(t.Key), strings.Join(updates, ", "))
}

// ExistsSQL renders the key lookup used to classify inserts and updates.
func (t TableSpec) ExistsSQL() string {
	conds := make([]string, len(t.Key))
	for i, k := range t.Key {
		conds[i] = quoteIdent(k) + " = ?"
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", quoteIdent(t.Name), strings.Join(conds, " AND "))
}

// RowValues converts a record into upsert arguments (columns then synced_at).
func (t TableSpec) RowValues(r models.SourceRecord, syncedAt time.Time) ([]interface{}, error) {
	vals := make([]interface{}, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		v, err := t.columnValue(c, r)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return append(vals, syncedAt), nil
}

// KeyValues returns the dedup key arguments of a record.
func (t TableSpec) KeyValues(r models.SourceRecord) ([]interface{}, error) {
	vals := make([]interface{}, 0, len(t.Key))
	for _, k := range t.Key {
		c, _ := t.Column(k)
		v, err := t.columnValue(c, r)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func (t TableSpec) columnValue(c Column, r models.SourceRecord) (interface{}, error) {
	key := t.isKey(c.Name)
	switch c.Kind {
	case ColumnDate:
		if r.Date.IsZero() {
			if key {
				return nil, fmt.Errorf("record %q has no date for key column %s", r.ExternalID, c.Name)
			}
			return nil, nil
		}
		return r.Date, nil
	case ColumnExternalID:
		if r.ExternalID == "" && key {
			return nil, fmt.Errorf("record has no external id for key column %s", c.Name)
		}
		return r.ExternalID, nil
	case ColumnMetric:
		v, ok := r.Metrics[c.sourceKey()]
		if !ok {
			if key {
				return nil, fmt.Errorf("record %q missing metric %s", r.ExternalID, c.Name)
			}
			return nil, nil
		}
		return v, nil
	default:
		v := r.Dimensions[c.sourceKey()]
		if v == "" && c.Default != "" {
			v = c.Default
		}
		if v == "" && !key {
			return nil, nil
		}
		return v, nil
	}
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
