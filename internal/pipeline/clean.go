package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/couchcryptid/crime-change-map/internal/domain"
	"github.com/couchcryptid/crime-change-map/internal/observability"
)

// previewRows is how many cleaned rows are printed after cleaning.
const previewRows = 5

// ErrEmptyInput is returned when the CSV has a header but no data rows.
var ErrEmptyInput = errors.New("empty input: no data rows")

// Cleaner loads the raw LAPD CSV, removes administrative columns and relabels
// victim codes.
type Cleaner struct {
	preview io.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCleaner creates a Cleaner. The first rows of every cleaned table are
// printed to preview; pass io.Discard to silence them.
func NewCleaner(preview io.Writer, logger *slog.Logger, metrics *observability.Metrics) *Cleaner {
	return &Cleaner{preview: preview, logger: logger, metrics: metrics}
}

// Clean reads CSV from r and returns the typed snapshot. source is recorded
// in the snapshot for provenance.
func (c *Cleaner) Clean(ctx context.Context, r io.Reader, source string) (domain.Snapshot, error) {
	// Every column is read as a string so DATE OCC and the code columns are
	// never coerced.
	df := dataframe.ReadCSV(r,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		// gota refuses to build a frame without data rows.
		if strings.Contains(df.Err.Error(), "empty DataFrame") {
			return domain.Snapshot{}, fmt.Errorf("load csv: %w", ErrEmptyInput)
		}
		return domain.Snapshot{}, fmt.Errorf("load csv: %w", df.Err)
	}
	c.metrics.RowsLoaded.Add(float64(df.Nrow()))

	if err := checkColumns(df.Names()); err != nil {
		return domain.Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	df = df.Drop(domain.DroppedColumns)
	df = mutateColumn(df, domain.ColDateOcc, domain.StripTimeSuffix)
	df = mutateColumn(df, domain.ColVictDescent, domain.MapDescent)
	df = mutateColumn(df, domain.ColVictSex, domain.MapSex)
	if df.Err != nil {
		return domain.Snapshot{}, fmt.Errorf("clean columns: %w", df.Err)
	}

	c.printPreview(df)

	incidents, err := toIncidents(df)
	if err != nil {
		return domain.Snapshot{}, err
	}
	c.metrics.RowsCleaned.Add(float64(len(incidents)))
	c.logger.Info("csv cleaned",
		"source", source,
		"rows", len(incidents),
		"columns", df.Ncol(),
		"mappings", domain.MappingsVersion,
	)

	return domain.NewSnapshot(source, df.Names(), incidents), nil
}

// checkColumns requires every dropped and every required column to be present.
func checkColumns(names []string) error {
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	for _, want := range [][]string{domain.DroppedColumns, domain.RequiredColumns} {
		for _, col := range want {
			if !have[col] {
				return fmt.Errorf("missing column %q", col)
			}
		}
	}
	return nil
}

// mutateColumn replaces a string column with fn applied to every value.
func mutateColumn(df dataframe.DataFrame, name string, fn func(string) string) dataframe.DataFrame {
	values := df.Col(name).Records()
	for i, v := range values {
		values[i] = fn(v)
	}
	return df.Mutate(series.New(values, series.String, name))
}

func (c *Cleaner) printPreview(df dataframe.DataFrame) {
	n := min(previewRows, df.Nrow())
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	fmt.Fprintln(c.preview, df.Subset(idx).String())
}

// toIncidents converts the cleaned table into typed rows. Row numbers in
// errors are 1-based data rows, not counting the header.
func toIncidents(df dataframe.DataFrame) ([]domain.Incident, error) {
	names := df.Names()
	records := df.Records()[1:]

	incidents := make([]domain.Incident, len(records))
	for i, rec := range records {
		inc := &incidents[i]
		for j, col := range names {
			if err := setField(inc, col, rec[j]); err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i+1, col, err)
			}
		}
	}
	return incidents, nil
}

func setField(inc *domain.Incident, col, value string) error {
	switch col {
	case domain.ColDateOcc:
		inc.DateOcc = value
	case domain.ColTimeOcc:
		inc.TimeOcc = value
	case domain.ColAreaName:
		inc.AreaName = value
	case domain.ColCrimeDesc:
		inc.CrimeDesc = value
	case domain.ColVictSex:
		inc.VictSex = value
	case domain.ColVictDescent:
		inc.VictDescent = value
	case domain.ColPremisDesc:
		inc.PremisDesc = value
	case domain.ColWeaponDesc:
		inc.WeaponDesc = value
	case domain.ColLocation:
		inc.Location = value
	case domain.ColCrossStreet:
		inc.CrossStreet = value
	case domain.ColVictAge:
		if strings.TrimSpace(value) == "" {
			return nil
		}
		age, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("parse age %q: %w", value, err)
		}
		inc.VictAge = age
	case domain.ColLat:
		v, err := parseCoord(value)
		if err != nil {
			return err
		}
		inc.Lat = v
	case domain.ColLon:
		v, err := parseCoord(value)
		if err != nil {
			return err
		}
		inc.Lon = v
	default:
		if inc.Extra == nil {
			inc.Extra = make(map[string]string)
		}
		inc.Extra[col] = value
	}
	return nil
}

func parseCoord(value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("parse coordinate %q: %w", value, err)
	}
	return v, nil
}
