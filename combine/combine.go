package combine

import (
	"context"
	"fmt"
	"runtime"
)

// RowSink receives one output partition's combined row stream. The
// Publisher's Writer is the production sink; tests and future transports
// can substitute their own. Optional capabilities (Flusher) are discovered
// by type assertion.
type RowSink interface {
	// Header supplies the column names. Sinks with append semantics accept
	// it once and ignore repeats.
	Header(record []string) error

	// Write appends one row. The record slice is reused between calls;
	// sinks that retain it must copy.
	Write(record []string) error
}

// Combiner produces one output partition's row stream: the concatenation of
// each constituent input file's pivot, in ascending year order, one file
// fully at a time. Peak memory is the size of one input file, never the
// partition.
type Combiner struct {
	key   OutputPartitionKey
	files []ManifestEntry
}

// NewCombiner creates a Combiner for one output partition. files are the
// partition's constituent inputs in Manifest order (ascending year), as
// returned by Manifest.Files for the key's (geography, measure).
func NewCombiner(key OutputPartitionKey, files []ManifestEntry) *Combiner {
	return &Combiner{key: key, files: files}
}

// Run streams the partition into sink and returns the number of rows
// written. Each file is read, pivoted and flushed before the next one is
// opened; the working memory of a processed file is released eagerly since
// a single input can be large relative to available memory. Errors abort
// immediately, leaving the sink unfinalized. Optional sink capabilities
// (Starter, Stopper, Flusher) are discovered by type assertion.
func (c *Combiner) Run(ctx context.Context, sink RowSink) (written int64, err error) {
	if starter, ok := sink.(Starter); ok {
		if err := starter.Start(ctx); err != nil {
			return 0, fmt.Errorf("start sink for %s: %w", c.key, err)
		}
	}
	if stopper, ok := sink.(Stopper); ok {
		defer func() { stopper.Stop(ctx, err) }()
	}
	flusher, _ := sink.(Flusher)

	for i, entry := range c.files {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		t, err := OpenTransform(entry.Path, c.key.Aggregation)
		if err != nil {
			return written, err
		}
		if i == 0 {
			if err := sink.Header(t.Header()); err != nil {
				return written, fmt.Errorf("write header for %s: %w", c.key, err)
			}
		}

		record := make([]string, 0, 4)
		for row, err := range t.Rows(ctx) {
			if err != nil {
				return written, err
			}
			if err := sink.Write(appendRecord(record, row)); err != nil {
				return written, fmt.Errorf("write row from %s: %w", entry.Path, err)
			}
			written++
		}

		if flusher != nil {
			if err := flusher.Flush(); err != nil {
				return written, err
			}
		}

		// The pivot held the whole file; reclaim it before reading the next.
		runtime.GC()
	}
	return written, nil
}

// appendRecord serializes a LongRow into buf, which is reused across rows.
// Rows carrying an Aggregation (AggAll mode) gain the aggregation column.
func appendRecord(buf []string, row LongRow) []string {
	buf = append(buf[:0], row.ID)
	if row.Aggregation != "" {
		buf = append(buf, row.Aggregation)
	}
	return append(buf, row.Date.String(), row.Value)
}
