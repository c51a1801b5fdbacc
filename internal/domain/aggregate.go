package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// dateLayouts are tried in order when deriving the year from DATE OCC.
var dateLayouts = []string{
	"01/02/2006",
	"2006-01-02",
	"01/02/2006 03:04:05 PM",
}

// Window is an inclusive range of years.
type Window struct {
	Start int
	End   int
}

// Contains reports whether year lies in the window.
func (w Window) Contains(year int) bool {
	return year >= w.Start && year <= w.End
}

// YearPair names the two years being compared.
type YearPair struct {
	Baseline   int
	Comparison int
}

// AggregateParams configures Aggregate.
type AggregateParams struct {
	Grid   Grid
	Window Window
	Pair   YearPair
}

// DefaultAggregateParams compares 2020 with 2023 inside a 2020-2023 window.
func DefaultAggregateParams() AggregateParams {
	return AggregateParams{
		Grid:   Grid{Resolution: DefaultGridResolution},
		Window: Window{Start: 2020, End: 2023},
		Pair:   YearPair{Baseline: 2020, Comparison: 2023},
	}
}

// Validate rejects a non-positive resolution, an inverted window, or a year
// pair outside the window.
func (p AggregateParams) Validate() error {
	if p.Grid.Resolution <= 0 {
		return errors.New("grid resolution must be positive")
	}
	if p.Window.Start > p.Window.End {
		return fmt.Errorf("year window %d-%d is inverted", p.Window.Start, p.Window.End)
	}
	if !p.Window.Contains(p.Pair.Baseline) || !p.Window.Contains(p.Pair.Comparison) {
		return fmt.Errorf("year pair %d,%d outside window %d-%d",
			p.Pair.Baseline, p.Pair.Comparison, p.Window.Start, p.Window.End)
	}
	if p.Pair.Baseline == p.Pair.Comparison {
		return fmt.Errorf("year pair compares %d with itself", p.Pair.Baseline)
	}
	return nil
}

// YearStats is one year's aggregate for a cell.
type YearStats struct {
	Year         int     `json:"year"`
	MeanSeverity float64 `json:"mean_severity"`
	Count        int     `json:"count"`
}

// ChangeRecord compares a cell across the year pair.
type ChangeRecord struct {
	Cell           Cell      `json:"cell"`
	Baseline       YearStats `json:"baseline"`
	Comparison     YearStats `json:"comparison"`
	SeverityChange float64   `json:"severity_change"`
	IncidentChange float64   `json:"incident_change"`
}

// AggregateStats counts how incidents were routed during aggregation.
type AggregateStats struct {
	Unscored    int // no severity for the description
	OutOfWindow int // year outside the window
	InWindow    int // scored and inside the window
	Compared    int // in one of the two compared years
	Cells       int
}

// ParseYear extracts the year from a cleaned DATE OCC value.
func ParseYear(date string) (int, error) {
	date = strings.TrimSpace(date)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Year(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized date %q", date)
}

// Aggregate attaches severity to incidents, restricts them to the window,
// groups the two compared years by grid cell and outer-joins the result.
// Records are ordered by cell index.
func Aggregate(incidents []Incident, table SeverityTable, p AggregateParams) ([]ChangeRecord, AggregateStats, error) {
	if err := p.Validate(); err != nil {
		return nil, AggregateStats{}, err
	}

	var stats AggregateStats
	baseline := make(map[cellKey]*cellAcc)
	comparison := make(map[cellKey]*cellAcc)

	for i := range incidents {
		inc := &incidents[i]

		year, err := ParseYear(inc.DateOcc)
		if err != nil {
			return nil, AggregateStats{}, fmt.Errorf("row %d column %q: %w", i+1, ColDateOcc, err)
		}

		severity, ok := table.Lookup(inc.CrimeDesc)
		if !ok {
			stats.Unscored++
			continue
		}
		if !p.Window.Contains(year) {
			stats.OutOfWindow++
			continue
		}
		stats.InWindow++

		var bucket map[cellKey]*cellAcc
		switch year {
		case p.Pair.Baseline:
			bucket = baseline
		case p.Pair.Comparison:
			bucket = comparison
		default:
			continue
		}
		stats.Compared++

		cell := p.Grid.Snap(inc.Lat, inc.Lon)
		acc, ok := bucket[cell.key()]
		if !ok {
			acc = &cellAcc{cell: cell}
			bucket[cell.key()] = acc
		}
		acc.severities = append(acc.severities, float64(severity))
	}

	records := mergeYears(baseline, comparison, p.Pair)
	stats.Cells = len(records)
	return records, stats, nil
}

type cellAcc struct {
	cell       Cell
	severities []float64
}

func (a *cellAcc) yearStats(year int) YearStats {
	if a == nil || len(a.severities) == 0 {
		return YearStats{Year: year}
	}
	return YearStats{
		Year:         year,
		MeanSeverity: stat.Mean(a.severities, nil),
		Count:        len(a.severities),
	}
}

// mergeYears outer-joins the two per-year groupings, zero-filling the
// missing side, and derives the clipped percent changes.
func mergeYears(baseline, comparison map[cellKey]*cellAcc, pair YearPair) []ChangeRecord {
	cells := make(map[cellKey]Cell, len(baseline)+len(comparison))
	for k, acc := range baseline {
		cells[k] = acc.cell
	}
	for k, acc := range comparison {
		cells[k] = acc.cell
	}

	records := make([]ChangeRecord, 0, len(cells))
	for k, cell := range cells {
		b := baseline[k].yearStats(pair.Baseline)
		c := comparison[k].yearStats(pair.Comparison)
		records = append(records, ChangeRecord{
			Cell:           cell,
			Baseline:       b,
			Comparison:     c,
			SeverityChange: PercentChange(b.MeanSeverity, c.MeanSeverity),
			IncidentChange: PercentChange(float64(b.Count), float64(c.Count)),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Cell.LatIdx != records[j].Cell.LatIdx {
			return records[i].Cell.LatIdx < records[j].Cell.LatIdx
		}
		return records[i].Cell.LonIdx < records[j].Cell.LonIdx
	})
	return records
}
