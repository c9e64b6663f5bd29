package extremes

import (
	"strconv"

	"github.com/schwartzgroup/daymet-aggregation/combine"
)

// Labels carried in the output's extreme column.
const (
	LabelCold = "cold"
	LabelHot  = "hot"
)

// Day is one extreme day for one geography unit.
type Day struct {
	ID   string
	Date combine.Date
}

// WaveHeader returns the output header, led by the input's id column name.
func WaveHeader(idField string) []string {
	return []string{idField, "year", "month", "day", "extreme", "wave_id", "wave_index", "wave_length"}
}

// WaveDetector groups extreme days into waves: maximal runs of consecutive
// calendar days per geography unit. Days must be pushed in (id, date)
// order; a change of id or a gap of more than one day closes the current
// wave and writes one row per day in it. A singleton extreme day is a wave
// of length 1.
type WaveDetector struct {
	label string
	sink  combine.RowSink

	waveID  int
	rows    int64
	lastID  string
	lastOrd int
	stack   []combine.Date
	record  []string
}

// NewWaveDetector creates a detector writing rows with the given extreme
// label. waveIDStart carries the wave id sequence across detectors sharing
// one output; pass the previous detector's WaveID, or 0.
func NewWaveDetector(label string, waveIDStart int, sink combine.RowSink) *WaveDetector {
	return &WaveDetector{
		label:  label,
		sink:   sink,
		waveID: waveIDStart,
		record: make([]string, 0, 8),
	}
}

// WaveID returns the id of the last wave written.
func (d *WaveDetector) WaveID() int { return d.waveID }

// Rows returns the number of rows written so far.
func (d *WaveDetector) Rows() int64 { return d.rows }

// Push adds the next extreme day, closing the current wave first when the
// unit changes or the calendar gap exceeds one day.
func (d *WaveDetector) Push(day Day) error {
	ord := day.Date.Ordinal()
	if day.ID != d.lastID || ord-d.lastOrd > 1 {
		if err := d.Flush(); err != nil {
			return err
		}
	}
	d.stack = append(d.stack, day.Date)
	d.lastID = day.ID
	d.lastOrd = ord
	return nil
}

// Flush closes the current wave, if any, and writes one row per day in it.
// Call it once more after the final Push; with an empty stack it writes
// nothing and consumes no wave id.
func (d *WaveDetector) Flush() error {
	if len(d.stack) == 0 {
		return nil
	}
	d.waveID++
	length := len(d.stack)
	for i, date := range d.stack {
		d.record = append(d.record[:0],
			d.lastID,
			strconv.Itoa(date.Year()),
			strconv.Itoa(date.Month()),
			strconv.Itoa(date.Day()),
			d.label,
			strconv.Itoa(d.waveID),
			strconv.Itoa(i+1),
			strconv.Itoa(length),
		)
		if err := d.sink.Write(d.record); err != nil {
			return err
		}
		d.rows++
	}
	d.stack = d.stack[:0]
	return nil
}
