package combine

import (
	"context"
	"log/slog"
)

// ReportInterval controls how often progress is reported, measured in rows
// written. Implement it on a ProgressReporter to set the interval from the
// reporter itself; WithReportInterval takes precedence. If neither is set,
// DefaultReportInterval (1,000,000 rows) is used.
type ReportInterval interface {
	// ReportInterval returns how often to call OnProgress (in rows written).
	ReportInterval() int
}

// ProgressReporter receives periodic updates while a partition streams.
// OnProgress is called each time the cumulative written-row count crosses a
// ReportInterval boundary. The Stats snapshot is safe to read; avoid
// blocking I/O since OnProgress runs inline with the row stream.
//
// Example:
//
//	func (r *reporter) ReportInterval() int { return 500_000 }
//
//	func (r *reporter) OnProgress(ctx context.Context, key combine.OutputPartitionKey, stats *combine.Stats) {
//	    slog.InfoContext(ctx, "progress", "partition", key, "rows", stats.Rows())
//	}
type ProgressReporter interface {
	// OnProgress is called periodically while key's partition streams.
	OnProgress(ctx context.Context, key OutputPartitionKey, stats *Stats)
}

// NewLogReporter returns a ProgressReporter that logs row counts to log at
// the default interval.
func NewLogReporter(log *slog.Logger) ProgressReporter {
	return &logReporter{log: log}
}

type logReporter struct {
	log *slog.Logger
}

func (r *logReporter) OnProgress(ctx context.Context, key OutputPartitionKey, stats *Stats) {
	r.log.InfoContext(ctx, "progress", "partition", key, "stats", stats)
}

// countingSink decorates a partition's RowSink with stats accounting and
// progress reporting. Flush marks a constituent-file boundary (the Flusher
// contract), which is where input files are counted.
type countingSink struct {
	ctx      context.Context
	inner    RowSink
	flusher  Flusher
	stats    *Stats
	key      OutputPartitionKey
	interval int64
	progress ProgressReporter
}

func newCountingSink(ctx context.Context, inner RowSink, stats *Stats, key OutputPartitionKey, interval int, progress ProgressReporter) *countingSink {
	flusher, _ := inner.(Flusher)
	return &countingSink{
		ctx:      ctx,
		inner:    inner,
		flusher:  flusher,
		stats:    stats,
		key:      key,
		interval: int64(interval),
		progress: progress,
	}
}

func (s *countingSink) Header(record []string) error {
	return s.inner.Header(record)
}

func (s *countingSink) Write(record []string) error {
	if err := s.inner.Write(record); err != nil {
		return err
	}
	total := s.stats.AddRows(1)
	if s.progress != nil && total%s.interval == 0 {
		s.progress.OnProgress(s.ctx, s.key, s.stats)
	}
	return nil
}

func (s *countingSink) Flush() error {
	s.stats.AddFiles(1)
	if s.flusher == nil {
		return nil
	}
	return s.flusher.Flush()
}

// Start and Stop forward the lifecycle capabilities of the wrapped sink.

func (s *countingSink) Start(ctx context.Context) error {
	if starter, ok := s.inner.(Starter); ok {
		return starter.Start(ctx)
	}
	return nil
}

func (s *countingSink) Stop(ctx context.Context, err error) {
	if stopper, ok := s.inner.(Stopper); ok {
		stopper.Stop(ctx, err)
	}
}
