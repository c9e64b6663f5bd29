package combine_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schwartzgroup/daymet-aggregation/combine"
)

// =============================================================================
// Test Fixtures
// =============================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildRoot lays out a small but complete input tree:
//
//	aggregated/counties/tmax_2001.csv.gz  (two days, with NA holes)
//	aggregated/counties/tmax_2002.csv.gz  (one day)
//	aggregated/tracts/prcp_2001.csv.gz    (one day, one unit)
func buildRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeCSV(t, filepath.Join(root, "aggregated", "counties", "tmax_2001.csv.gz"),
		[]string{"id", "20010101_min", "20010101_max", "20010101_mean", "20010102_min", "20010102_max", "20010102_mean"},
		[]string{"25059", "1", "9", "5", "2", "8", "5"},
		[]string{"25061", "3", "7", "NA", "NA", "6", "4"},
	)
	writeCSV(t, filepath.Join(root, "aggregated", "counties", "tmax_2002.csv.gz"),
		[]string{"id", "20020101_min", "20020101_max", "20020101_mean"},
		[]string{"25059", "0", "10", "5"},
		[]string{"25061", "-1", "11", "5"},
	)
	writeCSV(t, filepath.Join(root, "aggregated", "tracts", "prcp_2001.csv.gz"),
		[]string{"id", "20010101_min", "20010101_max", "20010101_mean"},
		[]string{"T1", "0", "2", "1"},
	)
	return root
}

// intervalReporter counts OnProgress calls and sets its own interval.
type intervalReporter struct {
	every int
	calls []combine.OutputPartitionKey
}

func (r *intervalReporter) ReportInterval() int { return r.every }

func (r *intervalReporter) OnProgress(_ context.Context, key combine.OutputPartitionKey, _ *combine.Stats) {
	r.calls = append(r.calls, key)
}

// Compile-time checks for the optional reporter capability.
var (
	_ combine.ProgressReporter = (*intervalReporter)(nil)
	_ combine.ReportInterval   = (*intervalReporter)(nil)
)

// =============================================================================
// Runner
// =============================================================================

func TestRunner_Run(t *testing.T) {
	root := buildRoot(t)

	stats, err := combine.NewRunner(root).
		WithLogger(discardLogger()).
		Run(context.Background())
	require.NoError(t, err)

	// counties/tmax contributes 5 min + 6 max + 5 mean rows (NA cells drop),
	// tracts/prcp contributes 1 row per kind.
	require.Equal(t, int64(19), stats.Rows())
	require.Equal(t, int64(9), stats.Files())
	require.Equal(t, int64(6), stats.Partitions())
	require.Zero(t, stats.Skipped())
	require.Zero(t, stats.Errors())

	for _, name := range []string{"min_tmax", "max_tmax", "mean_tmax"} {
		_, err := os.Stat(filepath.Join(root, "aggregated-combined", "counties", name+".csv.gz"))
		require.NoError(t, err, name)
	}
	for _, name := range []string{"min_prcp", "max_prcp", "mean_prcp"} {
		_, err := os.Stat(filepath.Join(root, "aggregated-combined", "tracts", name+".csv.gz"))
		require.NoError(t, err, name)
	}

	// Exact content check: blocks in year order, header column order within a
	// year, input row order within a block, NA dropped.
	want := [][]string{
		{"id", "date", "value"},
		{"25059", "20010101", "1"},
		{"25061", "20010101", "3"},
		{"25059", "20010102", "2"},
		{"25059", "20020101", "0"},
		{"25061", "20020101", "-1"},
	}
	got := readCSV(t, filepath.Join(root, "aggregated-combined", "counties", "min_tmax.csv.gz"))
	require.Equal(t, want, got)
}

func TestRunner_RerunIsNoOp(t *testing.T) {
	root := buildRoot(t)
	runner := combine.NewRunner(root).WithLogger(discardLogger())

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(6), stats.Skipped())
	require.Zero(t, stats.Partitions())
	require.Zero(t, stats.Rows())
	require.Zero(t, stats.Files())
}

func TestRunner_AggregationsSubset(t *testing.T) {
	root := buildRoot(t)

	stats, err := combine.NewRunner(root).
		WithLogger(discardLogger()).
		WithAggregations(combine.AggMean).
		Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Partitions())

	_, err = os.Stat(filepath.Join(root, "aggregated-combined", "counties", "mean_tmax.csv.gz"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "aggregated-combined", "counties", "min_tmax.csv.gz"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunner_UnknownAggregation(t *testing.T) {
	root := buildRoot(t)

	_, err := combine.NewRunner(root).
		WithLogger(discardLogger()).
		WithAggregations("median").
		Run(context.Background())
	require.ErrorContains(t, err, `unknown aggregation "median"`)
}

func TestRunner_InProgressInputExcludesPair(t *testing.T) {
	root := buildRoot(t)

	// A 2003 extract is still being written. All counties/tmax outputs must
	// wait for it; tracts/prcp is unaffected.
	writeCSV(t, filepath.Join(root, "aggregated", "counties", "tmax_2003.csv"),
		[]string{"id", "20030101_min"},
		[]string{"25059", "4"},
	)

	stats, err := combine.NewRunner(root).
		WithLogger(discardLogger()).
		Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Partitions())

	_, err = os.Stat(filepath.Join(root, "aggregated-combined", "counties"))
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(root, "aggregated-combined", "tracts", "mean_prcp.csv.gz"))
	require.NoError(t, err)
}

func TestRunner_ResumesAfterInterrupt(t *testing.T) {
	root := buildRoot(t)

	// A previous run died mid-partition, leaving a partial temp behind.
	final := combine.OutputPath(root, combine.OutputPartitionKey{
		Geography: "counties", Aggregation: combine.AggMin, Measure: "tmax",
	})
	temp := combine.TempPath(final)
	require.NoError(t, os.MkdirAll(filepath.Dir(temp), 0o755))
	require.NoError(t, os.WriteFile(temp, []byte("partial rows"), 0o644))

	stats, err := combine.NewRunner(root).
		WithLogger(discardLogger()).
		Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(6), stats.Partitions())

	// The rebuilt partition carries no trace of the dead run.
	got := readCSV(t, final)
	require.Equal(t, "id", got[0][0])
	require.Len(t, got, 6)
	_, err = os.Stat(temp)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunner_PublishedPartitionUntouched(t *testing.T) {
	root := buildRoot(t)

	final := combine.OutputPath(root, combine.OutputPartitionKey{
		Geography: "counties", Aggregation: combine.AggMin, Measure: "tmax",
	})
	require.NoError(t, os.MkdirAll(filepath.Dir(final), 0o755))
	require.NoError(t, os.WriteFile(final, []byte("sentinel"), 0o644))

	stats, err := combine.NewRunner(root).
		WithLogger(discardLogger()).
		Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Skipped())
	require.Equal(t, int64(5), stats.Partitions())

	// Completed outputs are never reopened, let alone rewritten.
	content, err := os.ReadFile(final)
	require.NoError(t, err)
	require.Equal(t, "sentinel", string(content))
}

func TestRunner_SchemaErrorAbortsByDefault(t *testing.T) {
	root := t.TempDir()
	writeCSV(t, filepath.Join(root, "aggregated", "counties", "tmax_2001.csv.gz"),
		[]string{"id", "20010101_x_min"},
		[]string{"25059", "1"},
	)

	stats, err := combine.NewRunner(root).
		WithLogger(discardLogger()).
		Run(context.Background())

	var se *combine.SchemaError
	require.ErrorAs(t, err, &se)
	require.ErrorContains(t, err, "partition counties/max_tmax")
	require.Equal(t, int64(1), stats.Errors())
	require.Zero(t, stats.Partitions())

	_, statErr := os.Stat(combine.OutputPath(root, combine.OutputPartitionKey{
		Geography: "counties", Aggregation: combine.AggMax, Measure: "tmax",
	}))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunner_ErrorHandlerSkips(t *testing.T) {
	root := buildRoot(t)
	writeCSV(t, filepath.Join(root, "aggregated", "blocks", "vp_2001.csv.gz"),
		[]string{"id", "20010101_x_min"},
		[]string{"B1", "1"},
	)

	var failed []combine.OutputPartitionKey
	handler := combine.ErrorHandlerFunc(
		func(_ context.Context, key combine.OutputPartitionKey, err error) combine.Action {
			require.Error(t, err)
			failed = append(failed, key)
			return combine.ActionSkip
		},
	)

	stats, err := combine.NewRunner(root).
		WithLogger(discardLogger()).
		WithErrorHandler(handler).
		Run(context.Background())
	require.NoError(t, err)

	// The malformed blocks/vp pair fails once per aggregation kind; the
	// healthy partitions still publish.
	require.Equal(t, int64(3), stats.Errors())
	require.Equal(t, int64(6), stats.Partitions())
	require.Len(t, failed, 3)
	for _, key := range failed {
		require.Equal(t, "blocks", key.Geography)
		require.Equal(t, "vp", key.Measure)
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	root := buildRoot(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := combine.NewRunner(root).
		WithLogger(discardLogger()).
		Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, stats.Partitions())
}

func TestRunner_ProgressReporting(t *testing.T) {
	root := buildRoot(t)
	reporter := &intervalReporter{every: 2}

	_, err := combine.NewRunner(root).
		WithLogger(discardLogger()).
		WithProgress(reporter).
		Run(context.Background())
	require.NoError(t, err)

	// 19 rows cross an interval of 2 nine times. The count is cumulative
	// across partitions, matching a whole-run progress display.
	require.Len(t, reporter.calls, 9)
}

func TestRunner_WithReportIntervalOverridesReporter(t *testing.T) {
	root := buildRoot(t)
	reporter := &intervalReporter{every: 2}

	_, err := combine.NewRunner(root).
		WithLogger(discardLogger()).
		WithProgress(reporter).
		WithReportInterval(5).
		Run(context.Background())
	require.NoError(t, err)

	// 19 rows cross an interval of 5 at 5, 10 and 15.
	require.Len(t, reporter.calls, 3)
}
