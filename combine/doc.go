// Package combine turns the per-year wide extracts produced by the upstream
// raster aggregation into per-measure long-format files, one output per
// geography x aggregation x measure.
//
// The input tree holds one wide file per geography x measure x year:
//
//	root/aggregated/<geography>/<measure>_<year>.csv.gz    (finished)
//	root/aggregated/<geography>/<measure>_<year>.csv       (in progress)
//
// Each wide file has one identifier column and one value column per
// date x aggregation kind, named <date>_<kind> (e.g. 20010131_mean). The
// pipeline pivots those files into long rows and concatenates all years of
// a (geography, measure) pair into:
//
//	root/aggregated-combined/<geography>/<aggregation>_<measure>.csv.gz
//
// with rows of [id, date, value]. Outputs cover tens of millions of rows,
// so the whole pipeline is built around one constraint: at most one input
// file is resident in memory at a time. Partitions are produced strictly
// sequentially, and within a partition each file is read, pivoted and
// flushed before the next one is opened.
//
// # Quick Start
//
//	stats, err := combine.NewRunner("output").
//	    WithLogger(slog.Default()).
//	    Run(ctx)
//
// A Runner scans the input tree, derives the output partitions, and
// produces each one. Individual components (Scan, Transform via
// OpenTransform, Combiner, Publisher) are exported and usable on their own.
//
// # Completeness
//
// A .csv sibling means the upstream tool is still writing that
// (geography, measure) pair, so Scan excludes the pair entirely, even its
// finished years: a combined output must include every year to be correct.
// A path that does not match the template at all is a MalformedPathError
// and aborts the run, never a silent skip.
//
// # Resumability
//
// Production of each output goes through a temp file
// (<name>-temp.csv.gz) that is atomically renamed over the final path only
// after every constituent file succeeded. Re-running is therefore always
// safe:
//
//   - final file exists: the partition is skipped (done)
//   - temp file left behind by an interrupted run: deleted, produced again
//   - neither: produced from scratch
//
// The final path is only ever observed fully written. There are no retries;
// re-running the batch is the recovery mechanism.
//
// # Configuration
//
// Runner knobs follow one pattern: a WithXxx builder method, and where it
// makes sense a matching interface on the supplied hook. The builder always
// takes priority, then the interface, then the Default* constant:
//
//	stats, err := combine.NewRunner(root).
//	    WithAggregations(combine.AggMean).  // default: min, max, mean
//	    WithProgress(reporter).             // reporter may implement ReportInterval
//	    WithReportInterval(500_000).        // overrides it
//	    WithErrorHandler(handler).          // default: first error stops the run
//	    Run(ctx)
//
// Custom RowSinks opt into the partition lifecycle through the optional
// Starter, Stopper and Flusher capabilities, discovered by type assertion.
//
// # Errors
//
// MalformedPathError and SchemaError are exported types; match them with
// errors.As. Everything else (I/O failures) is wrapped with the offending
// path. Any error leaves the affected partition unpublished for the next
// run, and by default stops the run; an ErrorHandler returning ActionSkip
// continues with the remaining partitions instead.
package combine
