package combine

import (
	"context"
	"fmt"
	"log/slog"
)

// Runner executes the combine pipeline for one root directory: scan the
// input tree, derive the output partitions, and produce each one through
// the Combiner and Publisher. Partitions are processed strictly one at a
// time, in (geography, aggregation, measure) order.
type Runner struct {
	root string

	// Configuration overrides (zero means use interface value or default)
	aggregations   []string
	reportInterval *int
	logger         *slog.Logger
	errHandler     ErrorHandler
	progress       ProgressReporter
}

// NewRunner creates a Runner for the given pipeline root (the directory
// holding aggregated/ and aggregated-combined/).
func NewRunner(root string) *Runner {
	return &Runner{root: root}
}

// WithAggregations restricts the run to the given aggregation kinds.
// Defaults to all of Aggregations. Unknown kinds fail Run.
func (r *Runner) WithAggregations(aggregations ...string) *Runner {
	r.aggregations = aggregations
	return r
}

// WithLogger sets the logger. Defaults to slog.Default.
func (r *Runner) WithLogger(log *slog.Logger) *Runner {
	r.logger = log
	return r
}

// WithErrorHandler sets the handler consulted when a partition fails.
// Without one, the first partition error stops the run.
func (r *Runner) WithErrorHandler(h ErrorHandler) *Runner {
	r.errHandler = h
	return r
}

// WithProgress sets the reporter receiving periodic row-count updates.
func (r *Runner) WithProgress(p ProgressReporter) *Runner {
	r.progress = p
	return r
}

// WithReportInterval overrides how often progress is reported (in rows).
// Priority: this method > ReportInterval interface > DefaultReportInterval.
// Values less than 1 are ignored.
func (r *Runner) WithReportInterval(n int) *Runner {
	if n >= 1 {
		r.reportInterval = &n
	}
	return r
}

// Run executes the pipeline. The returned Stats reflect whatever completed,
// also when Run returns an error. An error leaves the failed partition
// unpublished; re-running resumes where the work stopped, skipping
// partitions that already published.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	log := r.resolveLogger()
	stats := &Stats{}

	aggregations, err := r.resolveAggregations()
	if err != nil {
		return stats, err
	}

	manifest, err := Scan(r.root)
	if err != nil {
		return stats, err
	}
	keys := manifest.OutputKeys(aggregations)
	log.InfoContext(ctx, "manifest built",
		"root", r.root,
		"inputs", len(manifest),
		"partitions", len(keys),
	)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := r.runPartition(ctx, log, key, manifest, stats); err != nil {
			stats.AddErrors(1)
			action := ActionFail
			if r.errHandler != nil {
				action = r.errHandler.OnError(ctx, key, err)
			}
			if action != ActionSkip {
				return stats, fmt.Errorf("partition %s: %w", key, err)
			}
			log.WarnContext(ctx, "partition skipped after error", "partition", key, "error", err)
		}
	}

	log.InfoContext(ctx, "combine complete", "stats", stats)
	return stats, nil
}

// runPartition produces one output partition, honoring the Publisher's
// state machine.
func (r *Runner) runPartition(ctx context.Context, log *slog.Logger, key OutputPartitionKey, manifest Manifest, stats *Stats) error {
	pub := NewPublisher(OutputPath(r.root, key))

	state, err := pub.State()
	if err != nil {
		return err
	}
	switch state {
	case StateDone:
		stats.AddSkipped(1)
		log.DebugContext(ctx, "already published", "partition", key, "path", pub.FinalPath())
		return nil
	case StateStaleTemp:
		log.WarnContext(ctx, "removing stale temp from interrupted run", "partition", key, "path", pub.TempPath())
	}

	files := manifest.Files(key.Geography, key.Measure)
	if len(files) == 0 {
		return nil
	}

	w, err := pub.Begin()
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "combining", "partition", key, "files", len(files))
	sink := newCountingSink(ctx, w, stats, key, r.resolveReportInterval(), r.progress)
	written, err := NewCombiner(key, files).Run(ctx, sink)
	if err != nil {
		w.Abort()
		return err
	}
	if err := w.Commit(); err != nil {
		return err
	}

	stats.AddPartitions(1)
	log.InfoContext(ctx, "published", "partition", key, "rows", written, "path", pub.FinalPath())
	return nil
}
