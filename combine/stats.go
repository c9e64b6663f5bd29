package combine

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
)

// Stats provides run statistics with thread-safe access. The core pipeline
// is sequential, but counters use atomics so progress hooks can read them
// while a partition streams and future per-partition workers stay safe.
type Stats struct {
	files      atomic.Int64
	rows       atomic.Int64
	partitions atomic.Int64
	skipped    atomic.Int64
	errors     atomic.Int64
}

// NewStats creates a Stats with initial counter values.
func NewStats(files, rows, partitions, skipped, errors int64) *Stats {
	s := &Stats{}
	s.files.Store(files)
	s.rows.Store(rows)
	s.partitions.Store(partitions)
	s.skipped.Store(skipped)
	s.errors.Store(errors)
	return s
}

// Files returns the number of input files processed.
func (s *Stats) Files() int64 { return s.files.Load() }

// Rows returns the number of output rows written.
func (s *Stats) Rows() int64 { return s.rows.Load() }

// Partitions returns the number of output partitions published.
func (s *Stats) Partitions() int64 { return s.partitions.Load() }

// Skipped returns the number of partitions skipped as already published.
func (s *Stats) Skipped() int64 { return s.skipped.Load() }

// Errors returns the number of partition errors encountered.
func (s *Stats) Errors() int64 { return s.errors.Load() }

// Add methods return the new value after incrementing, which keeps interval
// crossings race-free for progress tracking.

func (s *Stats) AddFiles(n int64) int64      { return s.files.Add(n) }
func (s *Stats) AddRows(n int64) int64       { return s.rows.Add(n) }
func (s *Stats) AddPartitions(n int64) int64 { return s.partitions.Add(n) }
func (s *Stats) AddSkipped(n int64) int64    { return s.skipped.Add(n) }
func (s *Stats) AddErrors(n int64) int64     { return s.errors.Add(n) }

// LogValue implements slog.LogValuer for structured logging.
func (s *Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("files", s.Files()),
		slog.Int64("rows", s.Rows()),
		slog.Int64("partitions", s.Partitions()),
		slog.Int64("skipped", s.Skipped()),
		slog.Int64("errors", s.Errors()),
	)
}

// statsJSON is the JSON representation for marshaling/unmarshaling Stats.
type statsJSON struct {
	Files      int64 `json:"files"`
	Rows       int64 `json:"rows"`
	Partitions int64 `json:"partitions"`
	Skipped    int64 `json:"skipped"`
	Errors     int64 `json:"errors"`
}

// MarshalJSON implements json.Marshaler for Stats serialization.
func (s *Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(statsJSON{
		Files:      s.files.Load(),
		Rows:       s.rows.Load(),
		Partitions: s.partitions.Load(),
		Skipped:    s.skipped.Load(),
		Errors:     s.errors.Load(),
	})
}

// UnmarshalJSON implements json.Unmarshaler for Stats deserialization.
func (s *Stats) UnmarshalJSON(data []byte) error {
	var v statsJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.files.Store(v.Files)
	s.rows.Store(v.Rows)
	s.partitions.Store(v.Partitions)
	s.skipped.Store(v.Skipped)
	s.errors.Store(v.Errors)
	return nil
}
