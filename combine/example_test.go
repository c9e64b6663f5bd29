package combine_test

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/schwartzgroup/daymet-aggregation/combine"
)

// mustWriteInput creates a finished wide extract for examples.
func mustWriteInput(path string, records [][]string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		panic(err)
	}
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	gz := gzip.NewWriter(f)
	w := csv.NewWriter(gz)
	if err := w.WriteAll(records); err != nil {
		panic(err)
	}
	if err := gz.Close(); err != nil {
		panic(err)
	}
	if err := f.Close(); err != nil {
		panic(err)
	}
}

// =============================================================================
// Example: Combining a Root
// =============================================================================

func ExampleRunner_Run() {
	root, err := os.MkdirTemp("", "combine-example")
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer os.RemoveAll(root)

	mustWriteInput(filepath.Join(root, "aggregated", "counties", "tmin_2001.csv.gz"), [][]string{
		{"id", "20010101_min", "20010102_min"},
		{"X", "1", "2"},
		{"Y", "4", "NA"},
	})

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats, err := combine.NewRunner(root).
		WithLogger(quiet).
		WithAggregations(combine.AggMin).
		Run(context.Background())
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("partitions:", stats.Partitions())

	out, err := combine.OpenReader(filepath.Join(root, "aggregated-combined", "counties", "min_tmin.csv.gz"))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer out.Close()
	records, err := out.CSV.ReadAll()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, rec := range records {
		fmt.Println(strings.Join(rec, ","))
	}

	// Output:
	// partitions: 1
	// id,date,value
	// X,20010101,1
	// Y,20010101,4
	// X,20010102,2
}

// =============================================================================
// Example: TempPath
// =============================================================================

func ExampleTempPath() {
	fmt.Println(combine.TempPath("aggregated-combined/counties/mean_tmax.csv.gz"))

	// Output:
	// aggregated-combined/counties/mean_tmax-temp.csv.gz
}
