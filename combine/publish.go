package combine

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// State classifies where production stands for one output path.
type State int

const (
	// StatePending means neither the final output nor a temp file exists;
	// the partition needs to be produced from scratch.
	StatePending State = iota
	// StateStaleTemp means a previous run was interrupted mid-partition:
	// a temp file exists but the final output does not. The temp must be
	// deleted before producing, or already-appended rows would duplicate.
	StateStaleTemp
	// StateDone means the final output exists; production is skipped
	// entirely, making re-runs no-ops for completed partitions.
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStaleTemp:
		return "stale-temp"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TempPath returns the in-production sibling of a final output path: the
// base name gains a -temp marker before its extension, so mean_tmax.csv.gz
// is produced via mean_tmax-temp.csv.gz in the same directory (same
// filesystem, so the final rename is atomic).
func TempPath(final string) string {
	dir, base := filepath.Split(final)
	stem, ext, found := strings.Cut(base, ".")
	if !found {
		return final + "-temp"
	}
	return dir + stem + "-temp." + ext
}

// Publisher makes the production of one output path atomic and
// restart-safe. Rows accumulate in a temp file which is renamed over the
// final path only after the whole partition succeeded, so the final path is
// only ever observed fully written; any abnormal termination leaves at worst
// a temp file for the next run's StateStaleTemp cleanup.
type Publisher struct {
	final string
	temp  string
}

// NewPublisher creates a Publisher for the given final output path.
func NewPublisher(final string) *Publisher {
	return &Publisher{final: final, temp: TempPath(final)}
}

// FinalPath returns the path the output is published at.
func (p *Publisher) FinalPath() string { return p.final }

// TempPath returns the path rows are written to during production.
func (p *Publisher) TempPath() string { return p.temp }

// State reports the publication state for the output path.
func (p *Publisher) State() (State, error) {
	if _, err := os.Stat(p.final); err == nil {
		return StateDone, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return StatePending, fmt.Errorf("stat %s: %w", p.final, err)
	}
	if _, err := os.Stat(p.temp); err == nil {
		return StateStaleTemp, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return StatePending, fmt.Errorf("stat %s: %w", p.temp, err)
	}
	return StatePending, nil
}

// Begin prepares the temp file for writing: stale temps are removed, the
// output directory is created, and a fresh Writer is returned. Begin fails
// if the partition is already published.
func (p *Publisher) Begin() (*Writer, error) {
	state, err := p.State()
	if err != nil {
		return nil, err
	}
	switch state {
	case StateDone:
		return nil, fmt.Errorf("%s is already published", p.final)
	case StateStaleTemp:
		if err := os.Remove(p.temp); err != nil {
			return nil, fmt.Errorf("remove stale temp %s: %w", p.temp, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(p.temp), DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.OpenFile(p.temp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, DefaultFilePerm)
	if err != nil {
		return nil, fmt.Errorf("create temp %s: %w", p.temp, err)
	}

	w := &Writer{final: p.final, temp: p.temp, f: f}
	var dst io.Writer = f
	if strings.HasSuffix(p.temp, ".gz") {
		w.gz = gzip.NewWriter(f)
		dst = w.gz
	}
	w.csv = csv.NewWriter(dst)
	return w, nil
}

// Writer appends CSV rows to a Publisher's temp file, compressing when the
// path carries a .gz suffix. The header is written at most once regardless
// of how many times Header is called, which gives constituent input files
// plain append semantics.
type Writer struct {
	final string
	temp  string

	f          *os.File
	gz         *gzip.Writer
	csv        *csv.Writer
	headerDone bool
}

// Header writes the column names. Calls after the first are no-ops.
func (w *Writer) Header(record []string) error {
	if w.headerDone {
		return nil
	}
	w.headerDone = true
	return w.csv.Write(record)
}

// Write appends one row.
func (w *Writer) Write(record []string) error {
	return w.csv.Write(record)
}

// Flush forwards buffered rows to the temp file. The Combiner calls it at
// each constituent-file boundary.
func (w *Writer) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", w.temp, err)
	}
	if w.gz != nil {
		if err := w.gz.Flush(); err != nil {
			return fmt.Errorf("flush %s: %w", w.temp, err)
		}
	}
	return nil
}

// Commit finalizes the temp file, syncs it, and atomically renames it over
// the final path. Only call it after every constituent file has been
// processed; on error the temp file stays behind for the next run.
func (w *Writer) Commit() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.Abort()
		return fmt.Errorf("flush %s: %w", w.temp, err)
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			w.f.Close()
			return fmt.Errorf("close %s: %w", w.temp, err)
		}
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("sync %s: %w", w.temp, err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", w.temp, err)
	}
	if err := os.Rename(w.temp, w.final); err != nil {
		return fmt.Errorf("publish %s: %w", w.final, err)
	}
	return nil
}

// Abort closes the temp file without renaming it. The leftover temp is
// cleaned up by the next run's StateStaleTemp handling.
func (w *Writer) Abort() {
	if w.gz != nil {
		w.gz.Close()
	}
	w.f.Close()
}
