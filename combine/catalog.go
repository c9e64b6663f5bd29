package combine

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// File extensions used by the upstream aggregation tool. A finished file is
// safe to read; an in-progress file is still being written and poisons its
// whole (geography, measure) pair for the run.
const (
	FinishedExt   = ".csv.gz"
	InProgressExt = ".csv"
)

// Directory names under the pipeline root.
const (
	inputDirName  = "aggregated"
	outputDirName = "aggregated-combined"
)

// Aggregation kinds emitted by the upstream per-cell aggregation. The set is
// closed: every value column in a wide input names one of these, and every
// combined output is produced for exactly one of them.
const (
	AggMin  = "min"
	AggMax  = "max"
	AggMean = "mean"

	// AggAll requests every kind from Transform at once; rows then carry
	// their Aggregation and output records gain an aggregation column.
	AggAll = "all"
)

// Aggregations lists the closed aggregation set in output order.
var Aggregations = []string{AggMin, AggMax, AggMean}

// InputPartitionKey identifies one wide input file: the extract of one
// measure over one year for one geography set.
type InputPartitionKey struct {
	Geography string
	Measure   string
	Year      int
}

func (k InputPartitionKey) String() string {
	return fmt.Sprintf("%s/%s_%d", k.Geography, k.Measure, k.Year)
}

// Compare orders keys by (geography, measure, year), the Manifest order.
func (k InputPartitionKey) Compare(o InputPartitionKey) int {
	if c := strings.Compare(k.Geography, o.Geography); c != 0 {
		return c
	}
	if c := strings.Compare(k.Measure, o.Measure); c != 0 {
		return c
	}
	return cmp.Compare(k.Year, o.Year)
}

// OutputPartitionKey identifies one combined output file: all years of one
// measure's aggregation kind for one geography set.
type OutputPartitionKey struct {
	Geography   string
	Aggregation string
	Measure     string
}

func (k OutputPartitionKey) String() string {
	return fmt.Sprintf("%s/%s_%s", k.Geography, k.Aggregation, k.Measure)
}

// Compare orders keys by (geography, aggregation, measure), the order the
// runner produces partitions in.
func (k OutputPartitionKey) Compare(o OutputPartitionKey) int {
	if c := strings.Compare(k.Geography, o.Geography); c != 0 {
		return c
	}
	if c := strings.Compare(k.Aggregation, o.Aggregation); c != 0 {
		return c
	}
	return strings.Compare(k.Measure, o.Measure)
}

// LogValue implements slog.LogValuer so partition keys log as one group.
func (k OutputPartitionKey) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("geography", k.Geography),
		slog.String("aggregation", k.Aggregation),
		slog.String("measure", k.Measure),
	)
}

// OutputPath returns the final path for an output partition:
// root/aggregated-combined/<geography>/<aggregation>_<measure>.csv.gz.
func OutputPath(root string, key OutputPartitionKey) string {
	name := key.Aggregation + "_" + key.Measure + FinishedExt
	return filepath.Join(root, outputDirName, key.Geography, name)
}

// ManifestEntry pairs an input partition key with the file holding it.
type ManifestEntry struct {
	Key  InputPartitionKey
	Path string
}

// Manifest is the ordered set of finished input partitions for one run,
// sorted by (geography, measure, year). It is built fresh by Scan, never
// persisted, and read-only thereafter. Pairs with any in-progress sibling
// do not appear at all.
type Manifest []ManifestEntry

// Files returns the entries for one (geography, measure) pair, in ascending
// year order.
func (m Manifest) Files(geography, measure string) []ManifestEntry {
	var out []ManifestEntry
	for _, e := range m {
		if e.Key.Geography == geography && e.Key.Measure == measure {
			out = append(out, e)
		}
	}
	return out
}

// OutputKeys derives the distinct output partitions the manifest can
// produce: every (geography, measure) pair crossed with the requested
// aggregations, sorted by (geography, aggregation, measure).
func (m Manifest) OutputKeys(aggregations []string) []OutputPartitionKey {
	type pair struct{ geography, measure string }
	seen := make(map[pair]bool)
	var pairs []pair
	for _, e := range m {
		p := pair{e.Key.Geography, e.Key.Measure}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}

	keys := make([]OutputPartitionKey, 0, len(pairs)*len(aggregations))
	for _, p := range pairs {
		for _, agg := range aggregations {
			keys = append(keys, OutputPartitionKey{
				Geography:   p.geography,
				Aggregation: agg,
				Measure:     p.measure,
			})
		}
	}
	slices.SortFunc(keys, OutputPartitionKey.Compare)
	return keys
}

// Scan walks root/aggregated and builds the Manifest. Every file must match
// the path template, finished or not: an unparseable path is a
// MalformedPathError and aborts the scan, and in-progress files contribute
// their (geography, measure) to the exclusion set even though they never
// appear as entries.
func Scan(root string) (Manifest, error) {
	dir := filepath.Join(root, inputDirName)
	geos, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	type pair struct{ geography, measure string }
	inProgress := make(map[pair]bool)
	var m Manifest

	for _, geo := range geos {
		if !geo.IsDir() {
			return nil, &MalformedPathError{
				Path:   filepath.Join(dir, geo.Name()),
				Reason: "expected a geography directory",
			}
		}
		geoDir := filepath.Join(dir, geo.Name())
		files, err := os.ReadDir(geoDir)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", geoDir, err)
		}
		for _, f := range files {
			path := filepath.Join(geoDir, f.Name())
			if f.IsDir() {
				return nil, &MalformedPathError{Path: path, Reason: "expected a file"}
			}
			measure, year, finished, err := parseInputName(f.Name())
			if err != nil {
				return nil, &MalformedPathError{Path: path, Reason: err.Error()}
			}
			if !finished {
				inProgress[pair{geo.Name(), measure}] = true
				continue
			}
			m = append(m, ManifestEntry{
				Key:  InputPartitionKey{Geography: geo.Name(), Measure: measure, Year: year},
				Path: path,
			})
		}
	}

	m = slices.DeleteFunc(m, func(e ManifestEntry) bool {
		return inProgress[pair{e.Key.Geography, e.Key.Measure}]
	})
	slices.SortFunc(m, func(a, b ManifestEntry) int { return a.Key.Compare(b.Key) })
	return m, nil
}

// parseInputName splits "<measure>_<year>.<ext>" at the last underscore and
// classifies the extension. The measure itself may contain underscores; the
// year token must be all digits.
func parseInputName(name string) (measure string, year int, finished bool, err error) {
	var stem string
	switch {
	case strings.HasSuffix(name, FinishedExt):
		stem, finished = strings.TrimSuffix(name, FinishedExt), true
	case strings.HasSuffix(name, InProgressExt):
		stem, finished = strings.TrimSuffix(name, InProgressExt), false
	default:
		return "", 0, false, fmt.Errorf("extension is neither %s nor %s", FinishedExt, InProgressExt)
	}

	i := strings.LastIndex(stem, "_")
	if i < 1 {
		return "", 0, false, fmt.Errorf("name %q does not match <measure>_<year>", stem)
	}
	measure, yearToken := stem[:i], stem[i+1:]
	if yearToken == "" {
		return "", 0, false, fmt.Errorf("name %q does not match <measure>_<year>", stem)
	}
	for j := 0; j < len(yearToken); j++ {
		if yearToken[j] < '0' || yearToken[j] > '9' {
			return "", 0, false, fmt.Errorf("year token %q is not numeric", yearToken)
		}
	}
	for j := 0; j < len(yearToken); j++ {
		year = year*10 + int(yearToken[j]-'0')
	}
	return measure, year, finished, nil
}
