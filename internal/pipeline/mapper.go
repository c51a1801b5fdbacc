package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crime-change-map/internal/domain"
	"github.com/couchcryptid/crime-change-map/internal/observability"
)

// Renderer draws the change map as PNG.
type Renderer interface {
	Render(ctx context.Context, records []domain.ChangeRecord, landmarks []domain.Landmark, w io.Writer) error
}

// ChangePublisher ships change records to a downstream consumer.
type ChangePublisher interface {
	Publish(ctx context.Context, run domain.Run, records []domain.ChangeRecord) error
}

// Reporter writes a tabular report of a run.
type Reporter interface {
	Report(run domain.Run, records []domain.ChangeRecord, table domain.SeverityTable) error
}

// MapperOptions configures the map stage. Landmarks, Publisher and Reporter
// are optional.
type MapperOptions struct {
	Anchors   domain.AnchorSet
	Threshold float64
	Params    domain.AggregateParams
	View      domain.Extent
	Landmarks domain.LandmarkSource
	Publisher ChangePublisher
	Reporter  Reporter
}

// MapResult summarizes one map stage.
type MapResult struct {
	Records   []domain.ChangeRecord
	Table     domain.SeverityTable
	Scores    domain.ScoreStats
	Aggregate domain.AggregateStats
}

// Mapper scores, aggregates and renders a cleaned snapshot.
type Mapper struct {
	embedder domain.Embedder
	renderer Renderer
	opts     MapperOptions
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
}

// NewMapper creates the map stage.
func NewMapper(embedder domain.Embedder, renderer Renderer, opts MapperOptions, logger *slog.Logger, metrics *observability.Metrics) *Mapper {
	return &Mapper{
		embedder: embedder,
		renderer: renderer,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
	}
}

// Map runs score, aggregate and render for snap, writing the PNG to out.
// Publishing and reporting run after the image is written.
func (m *Mapper) Map(ctx context.Context, run domain.Run, snap domain.Snapshot, out io.Writer) (MapResult, error) {
	var res MapResult

	err := m.timed("score", func() error {
		scorer, err := domain.NewScorer(ctx, m.embedder, m.opts.Anchors, m.opts.Threshold)
		if err != nil {
			return err
		}
		res.Table, res.Scores, err = scorer.Score(ctx, snap.Descriptions())
		return err
	})
	if err != nil {
		return MapResult{}, fmt.Errorf("score: %w", err)
	}
	m.metrics.DescriptionsScored.WithLabelValues("matched").Add(float64(res.Scores.Unique - res.Scores.Fallbacks))
	m.metrics.DescriptionsScored.WithLabelValues("fallback").Add(float64(res.Scores.Fallbacks))
	m.logger.Info("descriptions scored",
		"run_id", run.ID,
		"unique", res.Scores.Unique,
		"fallbacks", res.Scores.Fallbacks,
		"anchors", m.opts.Anchors.Version,
	)

	err = m.timed("aggregate", func() error {
		var err error
		res.Records, res.Aggregate, err = domain.Aggregate(snap.Incidents, res.Table, m.opts.Params)
		return err
	})
	if err != nil {
		return MapResult{}, fmt.Errorf("aggregate: %w", err)
	}
	m.recordRouting(res.Aggregate)
	m.logger.Info("grid aggregated",
		"run_id", run.ID,
		"baseline_year", m.opts.Params.Pair.Baseline,
		"comparison_year", m.opts.Params.Pair.Comparison,
		"cells", res.Aggregate.Cells,
		"unscored", res.Aggregate.Unscored,
		"out_of_window", res.Aggregate.OutOfWindow,
	)

	err = m.timed("render", func() error {
		landmarks := domain.ResolveLandmarks(ctx, m.opts.Landmarks, m.opts.View, m.logger)
		return m.renderer.Render(ctx, res.Records, landmarks, out)
	})
	if err != nil {
		return MapResult{}, fmt.Errorf("render: %w", err)
	}

	if m.opts.Publisher != nil {
		err = m.timed("publish", func() error {
			return m.opts.Publisher.Publish(ctx, run, res.Records)
		})
		if err != nil {
			return MapResult{}, fmt.Errorf("publish: %w", err)
		}
		m.metrics.RecordsPublished.Add(float64(len(res.Records)))
	}

	if m.opts.Reporter != nil {
		err = m.timed("report", func() error {
			return m.opts.Reporter.Report(run, res.Records, res.Table)
		})
		if err != nil {
			return MapResult{}, fmt.Errorf("report: %w", err)
		}
	}

	return res, nil
}

func (m *Mapper) recordRouting(s domain.AggregateStats) {
	m.metrics.IncidentsRouted.WithLabelValues("compared").Add(float64(s.Compared))
	m.metrics.IncidentsRouted.WithLabelValues("other_year").Add(float64(s.InWindow - s.Compared))
	m.metrics.IncidentsRouted.WithLabelValues("out_of_window").Add(float64(s.OutOfWindow))
	m.metrics.IncidentsRouted.WithLabelValues("unscored").Add(float64(s.Unscored))
	m.metrics.GridCells.Set(float64(s.Cells))
}

// timed runs fn and records its duration under stage.
func (m *Mapper) timed(stage string, fn func() error) error {
	start := m.clock.Now()
	err := fn()
	m.metrics.StageDuration.WithLabelValues(stage).Observe(m.clock.Since(start).Seconds())
	return err
}
