package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crime-change-map/internal/adapter/embedding"
	"github.com/couchcryptid/crime-change-map/internal/adapter/snapshot"
	"github.com/couchcryptid/crime-change-map/internal/domain"
	"github.com/couchcryptid/crime-change-map/internal/observability"
	"github.com/couchcryptid/crime-change-map/internal/pipeline"
)

// --- mocks ---

type mockRenderer struct {
	records   []domain.ChangeRecord
	landmarks []domain.Landmark
	err       error
}

func (m *mockRenderer) Render(_ context.Context, records []domain.ChangeRecord, landmarks []domain.Landmark, w io.Writer) error {
	m.records = records
	m.landmarks = landmarks
	if m.err != nil {
		return m.err
	}
	_, err := w.Write([]byte("PNG"))
	return err
}

type mockPublisher struct {
	run     domain.Run
	records []domain.ChangeRecord
	err     error
}

func (m *mockPublisher) Publish(_ context.Context, run domain.Run, records []domain.ChangeRecord) error {
	m.run = run
	m.records = records
	return m.err
}

type mockReporter struct {
	calls int
	table domain.SeverityTable
}

func (m *mockReporter) Report(_ domain.Run, _ []domain.ChangeRecord, table domain.SeverityTable) error {
	m.calls++
	m.table = table
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func defaultOptions() pipeline.MapperOptions {
	return pipeline.MapperOptions{
		Anchors:   domain.DefaultAnchors(),
		Threshold: domain.DefaultSimilarityThreshold,
		Params:    domain.DefaultAggregateParams(),
		View:      domain.DefaultExtent(),
	}
}

func testRun() domain.Run {
	return domain.Run{ID: "run-1", Pair: domain.YearPair{Baseline: 2020, Comparison: 2023}}
}

// --- cleaner ---

func TestCleaner_Clean(t *testing.T) {
	var preview bytes.Buffer
	metrics := newTestMetrics()
	cleaner := pipeline.NewCleaner(&preview, discardLogger(), metrics)

	row := lapdRow("03/01/2020", "BURGLARY", 34.0521, -118.2437)
	row[domain.ColVictSex] = "M"
	row[domain.ColVictDescent] = "Q"
	blankAge := lapdRow("04/01/2021", "ARSON", 34.1, -118.3)
	blankAge[domain.ColVictAge] = ""

	csv := lapdCSV(t, domain.SourceColumns, row, blankAge)
	snap, err := cleaner.Clean(context.Background(), bytes.NewReader(csv), "in.csv")
	require.NoError(t, err)

	require.Len(t, snap.Incidents, 2)
	inc := snap.Incidents[0]
	assert.Equal(t, "03/01/2020", inc.DateOcc)
	assert.Equal(t, "Male", inc.VictSex)
	assert.Equal(t, "Q", inc.VictDescent, "unmapped codes pass through")
	assert.Equal(t, 31, inc.VictAge)
	assert.Equal(t, "Central", inc.AreaName)
	assert.InDelta(t, 34.0521, inc.Lat, 1e-9)
	assert.InDelta(t, -118.2437, inc.Lon, 1e-9)
	assert.Empty(t, inc.Extra)

	assert.Zero(t, snap.Incidents[1].VictAge)
	assert.Equal(t, "Female", snap.Incidents[1].VictSex)
	assert.Equal(t, "Hispanic/Latin/Mexican", snap.Incidents[1].VictDescent)

	for _, dropped := range domain.DroppedColumns {
		assert.NotContains(t, snap.Columns, dropped)
	}
	assert.Len(t, snap.Columns, len(domain.SourceColumns)-len(domain.DroppedColumns))
	assert.Equal(t, "in.csv", snap.Source)
	assert.Equal(t, domain.SnapshotSchemaVersion, snap.SchemaVersion)

	assert.Contains(t, preview.String(), "03/01/2020")
	assert.NotContains(t, preview.String(), "12:00:00 AM")
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.RowsLoaded), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.RowsCleaned), 0)
}

func TestCleaner_KeepsUnknownColumns(t *testing.T) {
	header := append(append([]string{}, domain.SourceColumns...), "Notes")
	row := lapdRow("03/01/2020", "BURGLARY", 34.05, -118.24)
	row["Notes"] = "follow up"

	snap, err := pipeline.NewCleaner(io.Discard, discardLogger(), newTestMetrics()).
		Clean(context.Background(), bytes.NewReader(lapdCSV(t, header, row)), "in.csv")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Notes": "follow up"}, snap.Incidents[0].Extra)
}

func TestCleaner_MissingColumn(t *testing.T) {
	tests := []string{"Mocodes", domain.ColLat, domain.ColVictDescent}
	for _, col := range tests {
		t.Run(col, func(t *testing.T) {
			header := without(domain.SourceColumns, col)
			csv := lapdCSV(t, header, lapdRow("03/01/2020", "BURGLARY", 34.05, -118.24))

			_, err := pipeline.NewCleaner(io.Discard, discardLogger(), newTestMetrics()).
				Clean(context.Background(), bytes.NewReader(csv), "in.csv")
			require.Error(t, err)
			assert.Contains(t, err.Error(), `missing column "`+col+`"`)
		})
	}
}

func TestCleaner_BadCoordinate(t *testing.T) {
	bad := lapdRow("03/02/2020", "BURGLARY", 0, 0)
	bad[domain.ColLon] = "west"
	csv := lapdCSV(t, domain.SourceColumns, lapdRow("03/01/2020", "BURGLARY", 34.05, -118.24), bad)

	_, err := pipeline.NewCleaner(io.Discard, discardLogger(), newTestMetrics()).
		Clean(context.Background(), bytes.NewReader(csv), "in.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), `"LON"`)
}

func TestCleaner_EmptyInput(t *testing.T) {
	csv := lapdCSV(t, domain.SourceColumns)
	_, err := pipeline.NewCleaner(io.Discard, discardLogger(), newTestMetrics()).
		Clean(context.Background(), bytes.NewReader(csv), "in.csv")
	require.ErrorIs(t, err, pipeline.ErrEmptyInput)
}

func TestCleaner_NoInput(t *testing.T) {
	_, err := pipeline.NewCleaner(io.Discard, discardLogger(), newTestMetrics()).
		Clean(context.Background(), bytes.NewReader(nil), "in.csv")
	require.ErrorIs(t, err, pipeline.ErrEmptyInput)
}

// --- mapper ---

func TestMapper_Map(t *testing.T) {
	renderer := &mockRenderer{}
	publisher := &mockPublisher{}
	reporter := &mockReporter{}
	metrics := newTestMetrics()

	opts := defaultOptions()
	opts.Publisher = publisher
	opts.Reporter = reporter
	mapper := pipeline.NewMapper(embedding.NewLexical(), renderer, opts, discardLogger(), metrics)

	snap := domain.NewSnapshot("in.csv", nil, nil)
	for _, row := range mixedYearRows() {
		snap.Incidents = append(snap.Incidents, domain.Incident{
			DateOcc:   domain.StripTimeSuffix(row[domain.ColDateOcc]),
			CrimeDesc: row[domain.ColCrimeDesc],
			Lat:       mustFloat(t, row[domain.ColLat]),
			Lon:       mustFloat(t, row[domain.ColLon]),
		})
	}

	var out bytes.Buffer
	res, err := mapper.Map(context.Background(), testRun(), snap, &out)
	require.NoError(t, err)

	assert.Equal(t, "PNG", out.String())
	assert.Equal(t, domain.SeverityTable{"vandalism": 2, "burglary": 3, "arson": 5}, res.Table)
	assert.Equal(t, domain.AggregateStats{OutOfWindow: 1, InWindow: 7, Compared: 6, Cells: 2}, res.Aggregate)

	require.Len(t, res.Records, 2)
	venice, downtown := res.Records[0], res.Records[1]
	assert.Equal(t, -100.0, venice.IncidentChange)
	assert.Equal(t, -100.0, venice.SeverityChange)
	assert.InDelta(t, 50, downtown.IncidentChange, 1e-9)
	assert.InDelta(t, (13.0/3-2.5)/2.5*100, downtown.SeverityChange, 1e-9)

	assert.Equal(t, res.Records, renderer.records)
	assert.Len(t, renderer.landmarks, 29, "static landmarks when no source is configured")
	assert.Equal(t, "run-1", publisher.run.ID)
	assert.Len(t, publisher.records, 2)
	assert.Equal(t, 1, reporter.calls)

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.GridCells), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.RecordsPublished), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(metrics.IncidentsRouted.WithLabelValues("compared")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.IncidentsRouted.WithLabelValues("other_year")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.DescriptionsScored.WithLabelValues("matched")), 0)
}

func TestMapper_RenderError(t *testing.T) {
	renderer := &mockRenderer{err: errors.New("disk full")}
	publisher := &mockPublisher{}
	opts := defaultOptions()
	opts.Publisher = publisher
	mapper := pipeline.NewMapper(embedding.NewLexical(), renderer, opts, discardLogger(), newTestMetrics())

	snap := domain.NewSnapshot("in.csv", nil, []domain.Incident{
		{DateOcc: "01/01/2020", CrimeDesc: "ARSON", Lat: 34.05, Lon: -118.24},
	})
	_, err := mapper.Map(context.Background(), testRun(), snap, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render: disk full")
	assert.Nil(t, publisher.records, "nothing is published after a failed render")
}

func TestMapper_PublishError(t *testing.T) {
	opts := defaultOptions()
	opts.Publisher = &mockPublisher{err: errors.New("broker down")}
	mapper := pipeline.NewMapper(embedding.NewLexical(), &mockRenderer{}, opts, discardLogger(), newTestMetrics())

	snap := domain.NewSnapshot("in.csv", nil, []domain.Incident{
		{DateOcc: "01/01/2020", CrimeDesc: "ARSON", Lat: 34.05, Lon: -118.24},
	})
	_, err := mapper.Map(context.Background(), testRun(), snap, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish")
}

// --- pipeline ---

func TestPipeline_RunThenMap(t *testing.T) {
	input := writeLAPDCSV(t, mixedYearRows()...)
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "cleaned.gob.gz")
	outPath := filepath.Join(dir, "map.png")

	renderer := &mockRenderer{}
	metrics := newTestMetrics()
	cleaner := pipeline.NewCleaner(io.Discard, discardLogger(), metrics)
	mapper := pipeline.NewMapper(embedding.NewLexical(), renderer, defaultOptions(), discardLogger(), metrics)
	p := pipeline.New(cleaner, mapper, snapshot.Store{}, discardLogger(), metrics)
	p.SetClock(clockwork.NewFakeClock())

	res, err := p.Run(context.Background(), testRun(), input, snapPath, outPath)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "PNG", string(data))

	// The map stage alone reproduces the same records from the snapshot.
	again, err := p.Map(context.Background(), testRun(), snapPath, outPath)
	require.NoError(t, err)
	assert.Equal(t, res.Records, again.Records)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_MapRemovesPartialOutput(t *testing.T) {
	input := writeLAPDCSV(t, mixedYearRows()...)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "map.png")

	metrics := newTestMetrics()
	p := pipeline.New(
		pipeline.NewCleaner(io.Discard, discardLogger(), metrics),
		pipeline.NewMapper(embedding.NewLexical(), &mockRenderer{err: errors.New("boom")}, defaultOptions(), discardLogger(), metrics),
		snapshot.Store{}, discardLogger(), metrics,
	)

	_, err := p.Run(context.Background(), testRun(), input, filepath.Join(dir, "s.gob.gz"), outPath)
	require.Error(t, err)
	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipeline_MissingInput(t *testing.T) {
	metrics := newTestMetrics()
	p := pipeline.New(pipeline.NewCleaner(io.Discard, discardLogger(), metrics), nil, snapshot.Store{}, discardLogger(), metrics)

	_, err := p.Clean(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), "out.gob.gz")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
