package extremes

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/schwartzgroup/daymet-aggregation/combine"
)

// CutoffTable holds per-year, per-unit temperature cutoffs: table[year][id].
type CutoffTable map[int]map[string]float64

// Lookup returns the cutoff for one (year, id) and whether an entry exists.
func (t CutoffTable) Lookup(year int, id string) (float64, bool) {
	cutoff, ok := t[year][id]
	return cutoff, ok
}

// LoadQuantiles reads one quantile table into a CutoffTable, keeping only
// the column for the requested percentile. The file's first column is the
// geography unit id; a year column and one pctileNN column per available
// percentile follow.
func LoadQuantiles(path string, pctile int) (CutoffTable, error) {
	r, err := combine.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	header, err := r.CSV.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	pctileName := fmt.Sprintf("pctile%02d", pctile)
	yearCol, pctileCol := -1, -1
	for i, name := range header {
		switch name {
		case "year":
			yearCol = i
		case pctileName:
			pctileCol = i
		}
	}
	if yearCol < 0 {
		return nil, fmt.Errorf("%s has no year column", path)
	}
	if pctileCol < 0 {
		return nil, fmt.Errorf("%s has no %s column", path, pctileName)
	}

	table := make(CutoffTable)
	for {
		rec, err := r.CSV.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		year, err := strconv.Atoi(rec[yearCol])
		if err != nil {
			return nil, fmt.Errorf("%s: year %q: %w", path, rec[yearCol], err)
		}
		cutoff, err := strconv.ParseFloat(rec[pctileCol], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %s %q: %w", path, pctileName, rec[pctileCol], err)
		}
		byID := table[year]
		if byID == nil {
			byID = make(map[string]float64)
			table[year] = byID
		}
		byID[rec[0]] = cutoff
	}
	return table, nil
}

// LoadCutoffs loads the cold cutoffs (low percentile of tmax) and the hot
// cutoffs (high percentile of tmin) for one geography. The two tables are
// independent and small next to the combined series, so they load
// concurrently.
func LoadCutoffs(tmaxQuantiles string, low int, tminQuantiles string, high int) (cold, hot CutoffTable, err error) {
	var g errgroup.Group
	g.Go(func() error {
		var err error
		cold, err = LoadQuantiles(tmaxQuantiles, low)
		return err
	})
	g.Go(func() error {
		var err error
		hot, err = LoadQuantiles(tminQuantiles, high)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return cold, hot, nil
}
