package extremes

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/schwartzgroup/daymet-aggregation/combine"
)

// Input file names. The combined series live under
// root/aggregated-combined/<geography>/; the quantile tables and the
// outputs live under root/extra/<geography>/.
const (
	DefaultTmaxName          = "mean_tmax.csv.gz"
	DefaultTminName          = "mean_tmin.csv.gz"
	DefaultTmaxQuantilesName = "tmax_quantiles.csv.gz"
	DefaultTminQuantilesName = "tmin_quantiles.csv.gz"

	extraDirName    = "extra"
	combinedDirName = "aggregated-combined"
)

// CutoffPair is one (low, high) percentile pair: days colder than the low
// tmax percentile are cold, days hotter than the high tmin percentile are
// hot.
type CutoffPair struct {
	Low  int
	High int
}

func (p CutoffPair) String() string {
	return fmt.Sprintf("%d:%d", p.Low, p.High)
}

// OutputName returns the output file name for the pair.
func (p CutoffPair) OutputName() string {
	return fmt.Sprintf("extreme_temps_pctile%02d_pctile%02d.csv.gz", p.Low, p.High)
}

// DefaultCutoffs are the percentile pairs an Extractor produces when none
// are configured.
var DefaultCutoffs = []CutoffPair{{1, 99}, {3, 97}, {5, 95}, {10, 90}, {15, 85}}

// ParseCutoffs parses a comma-separated list of low:high percentile pairs,
// e.g. "1:99,5:95".
func ParseCutoffs(s string) ([]CutoffPair, error) {
	var pairs []CutoffPair
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		lowTok, highTok, ok := strings.Cut(token, ":")
		if !ok {
			return nil, fmt.Errorf("cutoff pair %q is not <low>:<high>", token)
		}
		low, err := strconv.Atoi(lowTok)
		if err != nil {
			return nil, fmt.Errorf("cutoff pair %q: %w", token, err)
		}
		high, err := strconv.Atoi(highTok)
		if err != nil {
			return nil, fmt.Errorf("cutoff pair %q: %w", token, err)
		}
		if low < 1 || low > 99 || high < 1 || high > 99 {
			return nil, fmt.Errorf("cutoff pair %q: percentiles must be within 1..99", token)
		}
		pairs = append(pairs, CutoffPair{Low: low, High: high})
	}
	if len(pairs) == 0 {
		return nil, errors.New("no cutoff pairs given")
	}
	return pairs, nil
}

// Job extracts the extreme temperature waves for one output file: a cold
// pass over the mean tmax series, then a hot pass over the mean tmin
// series, sharing one wave id sequence and one output.
type Job struct {
	TmaxPath    string      // combined mean_tmax series
	ColdCutoffs CutoffTable // low percentile of tmax, per (year, id)
	TminPath    string      // combined mean_tmin series
	HotCutoffs  CutoffTable // high percentile of tmin, per (year, id)
	OutputPath  string
}

// Run produces the output unless it is already published. Production is
// resumable the same way combined partitions are: rows accumulate in a
// temp sibling that is renamed over OutputPath only after both passes
// succeed.
func (j Job) Run(ctx context.Context, log *slog.Logger, stats *combine.Stats) error {
	pub := combine.NewPublisher(j.OutputPath)
	state, err := pub.State()
	if err != nil {
		return err
	}
	switch state {
	case combine.StateDone:
		stats.AddSkipped(1)
		log.DebugContext(ctx, "already published", "path", pub.FinalPath())
		return nil
	case combine.StateStaleTemp:
		log.WarnContext(ctx, "removing stale temp from interrupted run", "path", pub.TempPath())
	}

	w, err := pub.Begin()
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "extracting extreme temperature waves",
		"tmax", j.TmaxPath, "tmin", j.TminPath, "output", pub.FinalPath())

	cold := pass{path: j.TmaxPath, cutoffs: j.ColdCutoffs, label: LabelCold, exceeds: colder}
	lastWave, err := cold.run(ctx, log, w, 0, stats)
	if err != nil {
		w.Abort()
		return err
	}
	hot := pass{path: j.TminPath, cutoffs: j.HotCutoffs, label: LabelHot, exceeds: hotter}
	if _, err := hot.run(ctx, log, w, lastWave, stats); err != nil {
		w.Abort()
		return err
	}

	if err := w.Commit(); err != nil {
		return err
	}
	stats.AddPartitions(1)
	log.InfoContext(ctx, "published", "path", pub.FinalPath())
	return nil
}

func colder(value, cutoff float64) bool { return value < cutoff }
func hotter(value, cutoff float64) bool { return value > cutoff }

// pass is one detection sweep over a combined series.
type pass struct {
	path    string
	cutoffs CutoffTable
	label   string
	exceeds func(value, cutoff float64) bool
}

// run reads the series, collects its extreme days, sorts them by
// (id, date), and feeds them to a WaveDetector. It returns the last wave id
// written so the next pass continues the sequence.
func (p pass) run(ctx context.Context, log *slog.Logger, w *combine.Writer, waveIDStart int, stats *combine.Stats) (int, error) {
	days, idField, err := p.collect(ctx)
	if err != nil {
		return waveIDStart, err
	}

	// A no-op for every pass after the first; the cold pass names the
	// columns.
	if err := w.Header(WaveHeader(idField)); err != nil {
		return waveIDStart, err
	}

	slices.SortFunc(days, func(a, b Day) int {
		if c := strings.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Date, b.Date)
	})

	det := NewWaveDetector(p.label, waveIDStart, w)
	for _, day := range days {
		if err := det.Push(day); err != nil {
			return waveIDStart, err
		}
	}
	if err := det.Flush(); err != nil {
		return waveIDStart, err
	}
	if err := w.Flush(); err != nil {
		return waveIDStart, err
	}
	stats.AddFiles(1)
	stats.AddRows(det.Rows())

	log.DebugContext(ctx, "pass complete",
		"label", p.label, "days", len(days), "waves", det.WaveID()-waveIDStart)
	return det.WaveID(), nil
}

// collect streams the combined series and keeps the days beyond their
// cutoff. Only the extreme days are materialized, a small fraction of the
// series at the percentiles involved. A (year, id) without a cutoff entry
// is never extreme.
func (p pass) collect(ctx context.Context) ([]Day, string, error) {
	r, err := combine.OpenReader(p.path)
	if err != nil {
		return nil, "", err
	}
	defer r.Close()

	header, err := r.CSV.Read()
	if err != nil {
		return nil, "", fmt.Errorf("read header of %s: %w", p.path, err)
	}
	idField := header[0]
	dateCol := slices.Index(header, "date")
	valueCol := slices.Index(header, "value")
	if dateCol < 0 || valueCol < 0 {
		return nil, "", fmt.Errorf("%s is not a combined series (no date/value columns)", p.path)
	}

	var days []Day
	for {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		rec, err := r.CSV.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", p.path, err)
		}
		date, err := combine.ParseDate(rec[dateCol])
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", p.path, err)
		}
		cutoff, ok := p.cutoffs.Lookup(date.Year(), rec[0])
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(rec[valueCol], 64)
		if err != nil {
			return nil, "", fmt.Errorf("%s: value %q: %w", p.path, rec[valueCol], err)
		}
		if !p.exceeds(value, cutoff) {
			continue
		}
		days = append(days, Day{ID: rec[0], Date: date})
	}
	return days, idField, nil
}

// Extractor runs wave extraction across every geography under root/extra,
// producing each missing cutoff pair output.
type Extractor struct {
	root    string
	cutoffs []CutoffPair
	logger  *slog.Logger
}

// NewExtractor creates an Extractor for the given pipeline root (the
// directory holding aggregated-combined/ and extra/).
func NewExtractor(root string) *Extractor {
	return &Extractor{root: root}
}

// WithCutoffs overrides the percentile pairs to produce. Defaults to
// DefaultCutoffs.
func (e *Extractor) WithCutoffs(pairs ...CutoffPair) *Extractor {
	e.cutoffs = pairs
	return e
}

// WithLogger sets the logger. Defaults to slog.Default.
func (e *Extractor) WithLogger(log *slog.Logger) *Extractor {
	e.logger = log
	return e
}

func (e *Extractor) resolveLogger() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

func (e *Extractor) resolveCutoffs() []CutoffPair {
	if len(e.cutoffs) > 0 {
		return e.cutoffs
	}
	return DefaultCutoffs
}

// Run scans root/extra and produces every missing output. Each geography
// directory must hold both quantile tables and have both combined series
// published; a missing input is an error rather than a skip, since a
// silently skipped geography would go unnoticed in a large batch. The
// returned Stats reflect whatever completed, also when Run returns an
// error.
func (e *Extractor) Run(ctx context.Context) (*combine.Stats, error) {
	log := e.resolveLogger()
	stats := &combine.Stats{}

	extraDir := filepath.Join(e.root, extraDirName)
	entries, err := os.ReadDir(extraDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.InfoContext(ctx, "no extra directory, nothing to do", "root", e.root)
			return stats, nil
		}
		return stats, fmt.Errorf("scan %s: %w", extraDir, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if !entry.IsDir() {
			return stats, fmt.Errorf("%s: expected a geography directory", filepath.Join(extraDir, entry.Name()))
		}
		if err := e.runGeography(ctx, log, entry.Name(), stats); err != nil {
			stats.AddErrors(1)
			return stats, fmt.Errorf("geography %s: %w", entry.Name(), err)
		}
	}

	log.InfoContext(ctx, "extremes complete", "stats", stats)
	return stats, nil
}

// runGeography produces every configured cutoff pair for one geography.
// The cutoff tables are reloaded per pair since each pair reads different
// percentile columns.
func (e *Extractor) runGeography(ctx context.Context, log *slog.Logger, geography string, stats *combine.Stats) error {
	combinedDir := filepath.Join(e.root, combinedDirName, geography)
	extraDir := filepath.Join(e.root, extraDirName, geography)

	tmaxPath := filepath.Join(combinedDir, DefaultTmaxName)
	tminPath := filepath.Join(combinedDir, DefaultTminName)
	tmaxQuantiles := filepath.Join(extraDir, DefaultTmaxQuantilesName)
	tminQuantiles := filepath.Join(extraDir, DefaultTminQuantilesName)
	for _, path := range []string{tmaxPath, tminPath, tmaxQuantiles, tminQuantiles} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("required input: %w", err)
		}
	}

	log = log.With("geography", geography)
	for _, pair := range e.resolveCutoffs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		outputPath := filepath.Join(extraDir, pair.OutputName())

		// Check for a published output before paying for the cutoff tables.
		state, err := combine.NewPublisher(outputPath).State()
		if err != nil {
			return err
		}
		if state == combine.StateDone {
			stats.AddSkipped(1)
			log.DebugContext(ctx, "already published", "path", outputPath)
			continue
		}

		cold, hot, err := LoadCutoffs(tmaxQuantiles, pair.Low, tminQuantiles, pair.High)
		if err != nil {
			return err
		}
		job := Job{
			TmaxPath:    tmaxPath,
			ColdCutoffs: cold,
			TminPath:    tminPath,
			HotCutoffs:  hot,
			OutputPath:  outputPath,
		}
		if err := job.Run(ctx, log, stats); err != nil {
			return err
		}
	}
	return nil
}
