package combine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// LongRow is one record of the wide-to-long pivot: a single cell of a wide
// input file keyed by its geography unit, date and aggregation kind.
// Aggregation is empty when a single kind was requested from Transform, in
// which case the kind is implicit in the output partition. Value is the cell
// text passed through unmodified.
type LongRow struct {
	ID          string
	Aggregation string
	Date        Date
	Value       string
}

// IDColumn is the resolved identifier column of a wide input file.
type IDColumn struct {
	Name  string
	Index int
}

// DetectIDColumn applies the structural rule for finding the identifier
// column: exactly one header field must not begin with a digit. All other
// fields are value columns, whose composite names always start with their
// 8-digit date. Zero or multiple candidates is a SchemaError rather than an
// arbitrary pick.
func DetectIDColumn(header []string) (IDColumn, error) {
	found := -1
	for i, name := range header {
		if name != "" && name[0] >= '0' && name[0] <= '9' {
			continue
		}
		if found >= 0 {
			return IDColumn{}, &SchemaError{
				Column: name,
				Reason: fmt.Sprintf("multiple non-digit-leading columns (%q and %q), cannot pick an identifier", header[found], name),
			}
		}
		found = i
	}
	if found < 0 {
		return IDColumn{}, &SchemaError{Reason: "no non-digit-leading column to use as the identifier"}
	}
	return IDColumn{Name: header[found], Index: found}, nil
}

// ValueColumn is one parsed wide-format value column.
type ValueColumn struct {
	Index       int
	Date        Date
	Aggregation string
}

// Transform is the wide-to-long pivot of one input file. OpenTransform reads
// the whole file up front (the memory bound is one file, never a partition)
// and Rows then yields the pivot lazily.
type Transform struct {
	path string
	agg  string
	id   IDColumn
	cols []ValueColumn
	rows [][]string
}

// OpenTransform reads the file at path and prepares its pivot for the given
// aggregation kind (one of Aggregations, or AggAll for every kind). The
// returned Transform holds the file's rows; the file handle is already
// closed.
func OpenTransform(path, aggregation string) (*Transform, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	header, err := r.CSV.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Path: path, Reason: "file has no header"}
		}
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	id, err := DetectIDColumn(header)
	if err != nil {
		var se *SchemaError
		if errors.As(err, &se) {
			se.Path = path
		}
		return nil, err
	}

	cols, err := parseValueColumns(path, header, id, aggregation)
	if err != nil {
		return nil, err
	}

	rows, err := r.CSV.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &Transform{path: path, agg: aggregation, id: id, cols: cols, rows: rows}, nil
}

// IDColumn returns the identifier column resolved from the file header.
func (t *Transform) IDColumn() IDColumn { return t.id }

// Header returns the output record header for this file's pivot:
// [id, date, value] for a single aggregation kind, [id, aggregation, date,
// value] for AggAll.
func (t *Transform) Header() []string {
	if t.agg == AggAll {
		return []string{t.id.Name, "aggregation", "date", "value"}
	}
	return []string{t.id.Name, "date", "value"}
}

// Rows yields the pivot: one block per selected value column in header
// order, input row order within each block. Rows with a missing value (empty
// or NA) are dropped, never emitted as placeholders. Callers must not assume
// date-sorted output.
func (t *Transform) Rows(ctx context.Context) iter.Seq2[LongRow, error] {
	return func(yield func(LongRow, error) bool) {
		for _, col := range t.cols {
			if err := ctx.Err(); err != nil {
				yield(LongRow{}, err)
				return
			}
			for _, rec := range t.rows {
				v := rec[col.Index]
				if missing(v) {
					continue
				}
				row := LongRow{
					ID:          rec[t.id.Index],
					Aggregation: col.Aggregation,
					Date:        col.Date,
					Value:       v,
				}
				if !yield(row, nil) {
					return
				}
			}
		}
	}
}

// parseValueColumns resolves the value columns to pivot. With a specific
// aggregation kind, columns of other kinds are skipped: they belong to other
// output partitions. Every selected column must split on "_" into exactly
// <date>_<aggregation> with a valid 8-digit date.
func parseValueColumns(path string, header []string, id IDColumn, aggregation string) ([]ValueColumn, error) {
	var suffix string
	if aggregation != AggAll {
		suffix = "_" + aggregation
	}

	cols := make([]ValueColumn, 0, len(header)-1)
	for i, name := range header {
		if i == id.Index {
			continue
		}
		if suffix != "" && !strings.HasSuffix(name, suffix) {
			continue
		}
		dateToken, aggToken, ok := splitComposite(name)
		if !ok {
			return nil, &SchemaError{
				Path:   path,
				Column: name,
				Reason: "composite name does not split into <date>_<aggregation>",
			}
		}
		date, err := ParseDate(dateToken)
		if err != nil {
			return nil, &SchemaError{Path: path, Column: name, Reason: err.Error()}
		}
		col := ValueColumn{Index: i, Date: date, Aggregation: aggToken}
		if suffix != "" {
			col.Aggregation = ""
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// splitComposite splits a value-column name into its two tokens. Names with
// zero or more than one underscore do not qualify.
func splitComposite(name string) (date, aggregation string, ok bool) {
	date, aggregation, ok = strings.Cut(name, "_")
	if !ok || date == "" || aggregation == "" || strings.Contains(aggregation, "_") {
		return "", "", false
	}
	return date, aggregation, true
}

// missing reports whether a wide cell has no value. The upstream writer
// leaves cells empty or marks them NA for geography units outside the raster
// extent.
func missing(v string) bool { return v == "" || v == "NA" }
