// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package bulkimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/models"
)

// RecordSource is a finite, ordered stream of records bound for one table.
type RecordSource interface {
	// Spec is the destination table.
	Spec() database.TableSpec

	// Name identifies the input in progress snapshots.
	Name() string

	// Total is the number of rows in the input, or 0 when unknown.
	Total() int64

	// Next returns the next record, io.EOF when the input is exhausted, or a
	// *RowError for a row that cannot be mapped. Any other error is fatal.
	Next() (models.SourceRecord, error)

	// Skip discards up to n rows and returns how many were discarded.
	Skip(n int64) (int64, error)
}

// RowError is a single unusable input row.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// CSVSource reads records from CSV with a header row.
type CSVSource struct {
	name   string
	spec   database.TableSpec
	total  int64
	reader *csv.Reader
	mapper *rowMapper
	closer io.Closer
}

// OpenCSV opens a CSV file and resolves the mapping against its header.
func OpenCSV(path string, m Mapping) (*CSVSource, error) {
	f, err := os.Open(path) //nolint:gosec // path is an operator-supplied CLI argument
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	src, err := NewCSVSource(f, path, m)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

// NewCSVSource reads rs twice: once to count rows, then to stream them.
func NewCSVSource(rs io.ReadSeeker, name string, m Mapping) (*CSVSource, error) {
	total, err := countRows(rs)
	if err != nil {
		return nil, fmt.Errorf("count rows in %s: %w", name, err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", name, err)
	}

	r := newCSVReader(rs)
	raw, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s is empty", name)
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", name, err)
	}
	header := make([]string, len(raw))
	for i, h := range raw {
		header[i] = normalizeHeader(h)
	}

	spec, err := m.Resolve(header)
	if err != nil {
		return nil, err
	}
	return &CSVSource{
		name:   name,
		spec:   spec,
		total:  total,
		reader: r,
		mapper: newRowMapper(spec, m.Source, header),
	}, nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return cr
}

// countRows counts data rows, excluding the header.
func countRows(r io.Reader) (int64, error) {
	cr := newCSVReader(r)
	var n int64
	for {
		_, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if err != nil && !errors.As(err, &perr) {
			return 0, err
		}
		n++
	}
	if n > 0 {
		n--
	}
	return n, nil
}

func (s *CSVSource) Spec() database.TableSpec { return s.spec }
func (s *CSVSource) Name() string             { return s.name }
func (s *CSVSource) Total() int64             { return s.total }

func (s *CSVSource) Next() (models.SourceRecord, error) {
	row, err := s.reader.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return models.SourceRecord{}, &RowError{Line: perr.Line, Err: perr.Err}
		}
		return models.SourceRecord{}, err
	}

	line, _ := s.reader.FieldPos(0)
	rec, err := s.mapper.toRecord(row)
	if err != nil {
		return models.SourceRecord{}, &RowError{Line: line, Err: err}
	}
	return rec, nil
}

func (s *CSVSource) Skip(n int64) (int64, error) {
	var skipped int64
	for skipped < n {
		_, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if err != nil && !errors.As(err, &perr) {
			return skipped, err
		}
		skipped++
	}
	return skipped, nil
}

// Close closes the underlying file when the source was opened by OpenCSV.
func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
