package xlsx

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/crime-change-map/internal/domain"
)

// Sheet names.
const (
	SheetChanges  = "Changes"
	SheetSeverity = "Severity"
	SheetRun      = "Run"
)

// Reporter writes an Excel workbook describing one map run.
// It implements pipeline.Reporter.
type Reporter struct {
	path   string
	logger *slog.Logger
}

func NewReporter(path string, logger *slog.Logger) *Reporter {
	return &Reporter{path: path, logger: logger}
}

// Report writes the change records, the severity table and the run metadata
// to the configured path, replacing any previous workbook.
func (r *Reporter) Report(run domain.Run, records []domain.ChangeRecord, table domain.SeverityTable) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("report style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetChanges); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := writeChanges(f, run.Pair, records, header); err != nil {
		return fmt.Errorf("report %s sheet: %w", SheetChanges, err)
	}
	if err := writeSeverity(f, table, header); err != nil {
		return fmt.Errorf("report %s sheet: %w", SheetSeverity, err)
	}
	if err := writeRun(f, run, len(records), header); err != nil {
		return fmt.Errorf("report %s sheet: %w", SheetRun, err)
	}

	if err := save(f, r.path); err != nil {
		return err
	}
	r.logger.Info("report written", "path", r.path, "run_id", run.ID, "records", len(records), "descriptions", len(table))
	return nil
}

// ChangesHeader returns the column titles of the Changes sheet for pair.
func ChangesHeader(pair domain.YearPair) []string {
	return []string{
		"Cell",
		"Latitude",
		"Longitude",
		fmt.Sprintf("%d Incidents", pair.Baseline),
		fmt.Sprintf("%d Mean Severity", pair.Baseline),
		fmt.Sprintf("%d Incidents", pair.Comparison),
		fmt.Sprintf("%d Mean Severity", pair.Comparison),
		"Incident Change (%)",
		"Severity Change (%)",
	}
}

func writeChanges(f *excelize.File, pair domain.YearPair, records []domain.ChangeRecord, header int) error {
	if err := writeHeader(f, SheetChanges, ChangesHeader(pair), header); err != nil {
		return err
	}
	for i, rec := range records {
		row := []any{
			rec.Cell.Key(),
			rec.Cell.Lat,
			rec.Cell.Lon,
			rec.Baseline.Count,
			rec.Baseline.MeanSeverity,
			rec.Comparison.Count,
			rec.Comparison.MeanSeverity,
			rec.IncidentChange,
			rec.SeverityChange,
		}
		if err := setRow(f, SheetChanges, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SheetChanges, "A", "A", 24); err != nil {
		return err
	}
	return f.SetPanes(SheetChanges, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// writeSeverity lists descriptions alphabetically.
func writeSeverity(f *excelize.File, table domain.SeverityTable, header int) error {
	if _, err := f.NewSheet(SheetSeverity); err != nil {
		return err
	}
	if err := writeHeader(f, SheetSeverity, []string{"Description", "Level"}, header); err != nil {
		return err
	}
	descs := make([]string, 0, len(table))
	for d := range table {
		descs = append(descs, d)
	}
	sort.Strings(descs)
	for i, d := range descs {
		if err := setRow(f, SheetSeverity, i+2, []any{d, table[d]}); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetSeverity, "A", "A", 56)
}

func writeRun(f *excelize.File, run domain.Run, records int, header int) error {
	if _, err := f.NewSheet(SheetRun); err != nil {
		return err
	}
	rows := [][]any{
		{"Run ID", run.ID},
		{"Started", run.StartedAt.Format(time.RFC3339)},
		{"Baseline Year", run.Pair.Baseline},
		{"Comparison Year", run.Pair.Comparison},
		{"Cells", records},
	}
	for i, row := range rows {
		if err := setRow(f, SheetRun, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetRun, "A1", fmt.Sprintf("A%d", len(rows)), header); err != nil {
		return err
	}
	return f.SetColWidth(SheetRun, "A", "B", 40)
}

func writeHeader(f *excelize.File, sheet string, titles []string, style int) error {
	row := make([]any, len(titles))
	for i, t := range titles {
		row[i] = t
	}
	if err := setRow(f, sheet, 1, row); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(titles), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// save writes next to path and renames, so a failed run never leaves a
// truncated workbook behind.
func save(f *excelize.File, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.xlsx")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	if err := f.SaveAs(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("save report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}
