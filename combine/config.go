package combine

import (
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
)

// Default configuration values.
const (
	DefaultRoot           = "output"
	DefaultReportInterval = 1_000_000

	DefaultDirPerm  fs.FileMode = 0o755
	DefaultFilePerm fs.FileMode = 0o644
)

// resolveLogger returns the effective logger.
// Priority: WithLogger > slog.Default.
func (r *Runner) resolveLogger() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// resolveAggregations returns the effective aggregation kinds, validated
// against the closed set. The runner produces one output partition per kind,
// so AggAll is not accepted here; use Transform directly for the combined
// four-column form.
func (r *Runner) resolveAggregations() ([]string, error) {
	if len(r.aggregations) == 0 {
		return Aggregations, nil
	}
	for _, agg := range r.aggregations {
		if !slices.Contains(Aggregations, agg) {
			return nil, fmt.Errorf("unknown aggregation %q (valid: %s, %s, %s)", agg, AggMin, AggMax, AggMean)
		}
	}
	return r.aggregations, nil
}

// resolveReportInterval returns the effective progress report interval.
// Priority: WithReportInterval > ReportInterval interface > DefaultReportInterval.
// Intervals less than 1 are ignored.
func (r *Runner) resolveReportInterval() int {
	if r.reportInterval != nil {
		return *r.reportInterval
	}
	if ri, ok := r.progress.(ReportInterval); ok {
		if n := ri.ReportInterval(); n >= 1 {
			return n
		}
	}
	return DefaultReportInterval
}
