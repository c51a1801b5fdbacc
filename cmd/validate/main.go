// Command validate checks a cleaned snapshot against the raw CSV it was built
// from: row counts, surviving columns, per-row field cleaning, date and
// coordinate sanity, and severity coverage under the lexical scorer.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv crime_data_lapd.csv \
//	  -snapshot cleaned_crime_data.gob.gz
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/crime-change-map/internal/adapter/embedding"
	"github.com/couchcryptid/crime-change-map/internal/adapter/snapshot"
	"github.com/couchcryptid/crime-change-map/internal/domain"
)

// maxErrors caps the per-phase error list; the count is still exact.
const maxErrors = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	total  int
}

func (p *phase) errorf(format string, args ...any) {
	p.total++
	if len(p.errors) < maxErrors {
		p.errors = append(p.errors, fmt.Sprintf(format, args...))
	}
}

func (p *phase) passed() bool { return p.total == 0 }

func main() {
	csvPath := flag.String("csv", "", "raw LAPD CSV")
	snapPath := flag.String("snapshot", "", "cleaned snapshot")
	flag.Parse()

	if *csvPath == "" || *snapPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *snapPath); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, snapPath string) int {
	fmt.Println("=== Crime Snapshot Integrity Validation ===")
	fmt.Println()

	header, rows, err := loadCSV(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV: %v\n", err)
		return 1
	}
	snap, err := snapshot.Read(snapPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load snapshot: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateShape(header, rows, snap),
		validateFields(rows, snap),
		validateValues(snap),
		validateSeverity(snap),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", p.total)
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d CSV, %d snapshot (schema v%d, created %s)\n",
		len(rows), len(snap.Incidents), snap.SchemaVersion, snap.CreatedAt.Format("2006-01-02 15:04:05"))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		if p.total > len(p.errors) {
			fmt.Printf("  ... and %d more\n", p.total-len(p.errors))
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

func loadCSV(path string) ([]string, []csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) < 2 {
		return nil, nil, fmt.Errorf("no data rows in %s", path)
	}

	header := all[0]
	rows := make([]csvRow, 0, len(all)-1)
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[h] = row[j]
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return header, rows, nil
}

// ── Phase 1: Shape ──
// Row count parity and the surviving column list.

func validateShape(header []string, rows []csvRow, snap domain.Snapshot) *phase {
	p := &phase{name: "Phase 1: Shape (rows, columns)"}

	if len(rows) != len(snap.Incidents) {
		p.errorf("row count: CSV has %d, snapshot has %d", len(rows), len(snap.Incidents))
	}

	dropped := make(map[string]bool, len(domain.DroppedColumns))
	for _, c := range domain.DroppedColumns {
		dropped[c] = true
	}
	var want []string
	for _, c := range header {
		if !dropped[c] {
			want = append(want, c)
		}
	}
	if strings.Join(want, "|") != strings.Join(snap.Columns, "|") {
		p.errorf("columns: want %v, snapshot has %v", want, snap.Columns)
	}
	for _, c := range snap.Columns {
		if dropped[c] {
			p.errorf("dropped column %q survived cleaning", c)
		}
	}
	return p
}

// ── Phase 2: Field cleaning ──
// Re-applies the cleaning rules to every raw row and compares.

func validateFields(rows []csvRow, snap domain.Snapshot) *phase {
	p := &phase{name: "Phase 2: Field cleaning (per row)"}

	n := min(len(rows), len(snap.Incidents))
	for i := range n {
		raw := rows[i].fields
		inc := &snap.Incidents[i]
		line := rows[i].lineNum

		if want := domain.StripTimeSuffix(raw[domain.ColDateOcc]); inc.DateOcc != want {
			p.errorf("line %d %s: want %q, got %q", line, domain.ColDateOcc, want, inc.DateOcc)
		}
		if want := domain.MapSex(raw[domain.ColVictSex]); inc.VictSex != want {
			p.errorf("line %d %s: want %q, got %q", line, domain.ColVictSex, want, inc.VictSex)
		}
		if want := domain.MapDescent(raw[domain.ColVictDescent]); inc.VictDescent != want {
			p.errorf("line %d %s: want %q, got %q", line, domain.ColVictDescent, want, inc.VictDescent)
		}
		if inc.CrimeDesc != raw[domain.ColCrimeDesc] {
			p.errorf("line %d %s: want %q, got %q", line, domain.ColCrimeDesc, raw[domain.ColCrimeDesc], inc.CrimeDesc)
		}
		checkCoord(p, line, domain.ColLat, raw[domain.ColLat], inc.Lat)
		checkCoord(p, line, domain.ColLon, raw[domain.ColLon], inc.Lon)
	}
	return p
}

func checkCoord(p *phase, line int, col, raw string, got float64) {
	want, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		p.errorf("line %d %s: unparseable %q", line, col, raw)
		return
	}
	if !floatEq(want, got) {
		p.errorf("line %d %s: want %g, got %g", line, col, want, got)
	}
}

// ── Phase 3: Values ──
// Dates parse, coordinates are finite and inside the LA bounding box. The
// export uses 0,0 for unknown locations; those are counted, not failed.

var laBounds = domain.Extent{MinLon: -119.0, MinLat: 33.3, MaxLon: -117.6, MaxLat: 34.9}

func validateValues(snap domain.Snapshot) *phase {
	p := &phase{name: "Phase 3: Values (dates, coordinates)"}

	years := map[int]int{}
	var unknownLoc int
	for i := range snap.Incidents {
		inc := &snap.Incidents[i]
		year, err := domain.ParseYear(inc.DateOcc)
		if err != nil {
			p.errorf("incident %d: %v", i, err)
		} else {
			years[year]++
		}

		switch {
		case math.IsNaN(inc.Lat) || math.IsNaN(inc.Lon) || math.IsInf(inc.Lat, 0) || math.IsInf(inc.Lon, 0):
			p.errorf("incident %d: non-finite coordinate %g,%g", i, inc.Lat, inc.Lon)
		case inc.Lat == 0 && inc.Lon == 0:
			unknownLoc++
		case !laBounds.Contains(inc.Lon, inc.Lat):
			p.errorf("incident %d: coordinate %g,%g outside LA", i, inc.Lat, inc.Lon)
		}
	}

	fmt.Printf("Years: %v\n", years)
	fmt.Printf("Unknown locations (0,0): %d\n", unknownLoc)
	return p
}

// ── Phase 4: Severity ──
// Every description scores to a level in range under the default anchors.

func validateSeverity(snap domain.Snapshot) *phase {
	p := &phase{name: "Phase 4: Severity coverage (lexical)"}

	ctx := context.Background()
	scorer, err := domain.NewScorer(ctx, embedding.NewLexical(), domain.DefaultAnchors(), domain.DefaultSimilarityThreshold)
	if err != nil {
		p.errorf("scorer: %v", err)
		return p
	}
	table, stats, err := scorer.Score(ctx, snap.Descriptions())
	if err != nil {
		p.errorf("score: %v", err)
		return p
	}
	for desc, level := range table {
		if level < domain.MinSeverity || level > domain.MaxSeverity {
			p.errorf("%q scored %d", desc, level)
		}
	}
	for i := range snap.Incidents {
		if _, ok := table.Lookup(snap.Incidents[i].CrimeDesc); !ok {
			p.errorf("incident %d: %q has no severity", i, snap.Incidents[i].CrimeDesc)
		}
	}

	fmt.Printf("Descriptions: %d unique, %d below threshold\n", stats.Unique, stats.Fallbacks)
	return p
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
