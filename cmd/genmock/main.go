// Command genmock writes a synthetic LAPD-format crime CSV for local runs and
// test fixtures. It pushes the generated file through the real cleaner,
// lexical scorer and aggregator so the printed stats match pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/crime_data_lapd.csv -rows 2000 -seed 42
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crime-change-map/internal/adapter/embedding"
	"github.com/couchcryptid/crime-change-map/internal/domain"
	"github.com/couchcryptid/crime-change-map/internal/observability"
	"github.com/couchcryptid/crime-change-map/internal/pipeline"
)

// hotspot is a neighborhood center incidents scatter around.
type hotspot struct {
	area     string
	lat, lon float64
	weight   int
}

var hotspots = []hotspot{
	{"Central", 34.0441, -118.2468, 6},
	{"Hollywood", 34.0983, -118.3267, 5},
	{"Pacific", 33.9925, -118.4695, 3},
	{"Southwest", 34.0224, -118.2851, 4},
	{"77th Street", 33.9618, -118.2906, 4},
	{"West LA", 34.0560, -118.4290, 2},
	{"Van Nuys", 34.1867, -118.4487, 2},
}

var descriptions = []string{
	"BURGLARY FROM VEHICLE",
	"BURGLARY",
	"THEFT OF IDENTITY",
	"VEHICLE - STOLEN",
	"BATTERY - SIMPLE ASSAULT",
	"ASSAULT WITH DEADLY WEAPON, AGGRAVATED ASSAULT",
	"ROBBERY",
	"VANDALISM - FELONY ($400 & OVER, ALL CHURCH VANDALISMS)",
	"TRESPASSING",
	"CRIMINAL THREATS - NO WEAPON DISPLAYED",
	"INTIMATE PARTNER - SIMPLE ASSAULT",
	"SHOPLIFTING - PETTY THEFT ($950 & UNDER)",
	"ARSON",
	"CRIMINAL HOMICIDE",
	"DRUNK ROLL",
	"DISTURBING THE PEACE",
}

var (
	sexCodes     = []string{"M", "F", "X", ""}
	descentCodes = []string{"H", "W", "B", "O", "A", "X", "K", "F"}
	premises     = []string{"STREET", "SINGLE FAMILY DWELLING", "PARKING LOT", "SIDEWALK", "MULTI-UNIT DWELLING (APARTMENT, DUPLEX, ETC)"}
)

func main() {
	logger := sharedobs.NewLogger(os.Getenv("LOG_LEVEL"), "text")
	if err := run(logger); err != nil {
		logger.Error("genmock failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	out := flag.String("out", "", "output path for the generated CSV")
	rows := flag.Int("rows", 2000, "number of incidents to generate")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *out == "" || *rows <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -rows > 0")
	}

	data, err := generate(rand.New(rand.NewPCG(*seed, *seed)), *rows)
	if err != nil {
		return fmt.Errorf("generating: %w", err)
	}
	if err := writeFile(*out, data); err != nil {
		return fmt.Errorf("writing %s: %w", *out, err)
	}
	logger.Info("mock data written", "rows", *rows, "path", *out)

	return printStats(data)
}

// generate renders n rows in the export's column order. Later years lean
// toward the busier hotspots so the change map has something to show.
func generate(r *rand.Rand, n int) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(domain.SourceColumns); err != nil {
		return nil, err
	}

	total := 0
	for _, h := range hotspots {
		total += h.weight
	}

	for i := range n {
		year := 2020 + r.IntN(4)
		h := pickHotspot(r, total)
		if year >= 2022 && h.weight < 4 && r.IntN(3) == 0 {
			h = hotspots[0]
		}
		occ := time.Date(year, time.Month(1+r.IntN(12)), 1+r.IntN(28), 0, 0, 0, 0, time.UTC)
		rptd := occ.AddDate(0, 0, r.IntN(5))

		values := map[string]string{
			"DR_NO":               strconv.Itoa(200100000 + i),
			"Date Rptd":           rptd.Format("01/02/2006") + " 12:00:00 AM",
			domain.ColDateOcc:     occ.Format("01/02/2006") + " 12:00:00 AM",
			domain.ColTimeOcc:     fmt.Sprintf("%02d%02d", r.IntN(24), r.IntN(60)),
			"AREA":                fmt.Sprintf("%02d", 1+r.IntN(21)),
			domain.ColAreaName:    h.area,
			"Rpt Dist No":         fmt.Sprintf("%04d", 100+r.IntN(2000)),
			"Part 1-2":            strconv.Itoa(1 + r.IntN(2)),
			"Crm Cd":              strconv.Itoa(100 + r.IntN(900)),
			domain.ColCrimeDesc:   descriptions[r.IntN(len(descriptions))],
			"Mocodes":             fmt.Sprintf("%04d %04d", r.IntN(2000), r.IntN(2000)),
			domain.ColVictAge:     strconv.Itoa(r.IntN(80)),
			domain.ColVictSex:     sexCodes[r.IntN(len(sexCodes))],
			domain.ColVictDescent: descentCodes[r.IntN(len(descentCodes))],
			"Premis Cd":           strconv.Itoa(100 + r.IntN(800)),
			domain.ColPremisDesc:  premises[r.IntN(len(premises))],
			"Status":              "IC",
			"Status Desc":         "Invest Cont",
			"Crm Cd 1":            strconv.Itoa(100 + r.IntN(900)),
			domain.ColLocation:    fmt.Sprintf("%d W  %dTH ST", 100*(1+r.IntN(60)), 1+r.IntN(120)),
			domain.ColLat:         strconv.FormatFloat(h.lat+r.NormFloat64()*0.01, 'f', 4, 64),
			domain.ColLon:         strconv.FormatFloat(h.lon+r.NormFloat64()*0.01, 'f', 4, 64),
		}
		rec := make([]string, len(domain.SourceColumns))
		for j, col := range domain.SourceColumns {
			rec[j] = values[col]
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func pickHotspot(r *rand.Rand, total int) hotspot {
	n := r.IntN(total)
	for _, h := range hotspots {
		if n < h.weight {
			return h
		}
		n -= h.weight
	}
	return hotspots[len(hotspots)-1]
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

type levelCount struct {
	desc  string
	level int
}

// printStats cleans, scores and aggregates the generated data with the
// default configuration and prints the figures tests assert on.
func printStats(data []byte) error {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	snap, err := pipeline.NewCleaner(io.Discard, logger, metrics).Clean(ctx, bytes.NewReader(data), "genmock")
	if err != nil {
		return fmt.Errorf("cleaning: %w", err)
	}

	scorer, err := domain.NewScorer(ctx, embedding.NewLexical(), domain.DefaultAnchors(), domain.DefaultSimilarityThreshold)
	if err != nil {
		return err
	}
	table, scores, err := scorer.Score(ctx, snap.Descriptions())
	if err != nil {
		return err
	}
	records, agg, err := domain.Aggregate(snap.Incidents, table, domain.DefaultAggregateParams())
	if err != nil {
		return err
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows: %d\n", len(snap.Incidents))
	fmt.Printf("Unique descriptions: %d (fallbacks=%d)\n", scores.Unique, scores.Fallbacks)
	fmt.Printf("Routing: unscored=%d out_of_window=%d in_window=%d compared=%d\n",
		agg.Unscored, agg.OutOfWindow, agg.InWindow, agg.Compared)
	fmt.Printf("Cells: %d\n", agg.Cells)

	levels := make([]levelCount, 0, len(table))
	for d, l := range table {
		levels = append(levels, levelCount{d, l})
	}
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].level != levels[j].level {
			return levels[i].level > levels[j].level
		}
		return levels[i].desc < levels[j].desc
	})
	fmt.Println("\nSeverity table:")
	for _, lc := range levels {
		fmt.Printf("  %d  %s\n", lc.level, lc.desc)
	}

	var grew, shrank, appeared, vanished int
	for _, rec := range records {
		switch {
		case rec.Baseline.Count == 0:
			appeared++
		case rec.Comparison.Count == 0:
			vanished++
		case rec.IncidentChange > 0:
			grew++
		case rec.IncidentChange < 0:
			shrank++
		}
	}
	fmt.Printf("\nCells grew=%d shrank=%d appeared=%d vanished=%d\n", grew, shrank, appeared, vanished)
	return nil
}
