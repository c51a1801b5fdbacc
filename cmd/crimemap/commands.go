package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/couchcryptid/crime-change-map/internal/adapter/embedding"
	kafkaadapter "github.com/couchcryptid/crime-change-map/internal/adapter/kafka"
	"github.com/couchcryptid/crime-change-map/internal/adapter/overpass"
	"github.com/couchcryptid/crime-change-map/internal/adapter/snapshot"
	"github.com/couchcryptid/crime-change-map/internal/adapter/tiles"
	"github.com/couchcryptid/crime-change-map/internal/adapter/xlsx"
	"github.com/couchcryptid/crime-change-map/internal/config"
	"github.com/couchcryptid/crime-change-map/internal/domain"
	"github.com/couchcryptid/crime-change-map/internal/observability"
	"github.com/couchcryptid/crime-change-map/internal/pipeline"
	"github.com/couchcryptid/crime-change-map/internal/render"
)

// app holds what every subcommand shares. It is populated in the root
// command's PersistentPreRunE and released by finish after the subcommand
// returns, whether or not it failed.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	closers []io.Closer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "crimemap",
		Short:         "Map how LA crime changed between two years",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newCleanCmd(a), newMapCmd(a), newRunCmd(a))
	return root
}

func newCleanCmd(a *app) *cobra.Command {
	var input, snap string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean the raw LAPD CSV into a snapshot",
		Args:  cobra.NoArgs,
		RunE: a.withFinish(func(cmd *cobra.Command) error {
			p := a.pipeline(nil)
			_, err := p.Clean(cmd.Context(), a.pathOr(input, a.cfg.InputPath), a.pathOr(snap, a.cfg.SnapshotPath))
			return err
		}),
	}
	cmd.Flags().StringVar(&input, "input", "", "raw CSV path (default $INPUT_PATH)")
	cmd.Flags().StringVar(&snap, "snapshot", "", "snapshot path (default $SNAPSHOT_PATH)")
	return cmd
}

func newMapCmd(a *app) *cobra.Command {
	var snap, output string
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Score, aggregate and render a snapshot",
		Args:  cobra.NoArgs,
		RunE: a.withFinish(func(cmd *cobra.Command) error {
			ctx := cmd.Context()
			mapper, err := a.mapper(ctx)
			if err != nil {
				return err
			}
			run := domain.NewRun(uuid.NewString(), a.cfg.Pair)
			res, err := a.pipeline(mapper).Map(ctx, run, a.pathOr(snap, a.cfg.SnapshotPath), a.pathOr(output, a.cfg.OutputPath))
			if err != nil {
				return err
			}
			a.summarize(run, res)
			return nil
		}),
	}
	cmd.Flags().StringVar(&snap, "snapshot", "", "snapshot path (default $SNAPSHOT_PATH)")
	cmd.Flags().StringVar(&output, "output", "", "PNG output path (default $OUTPUT_PATH)")
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	var input, snap, output string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run clean then map",
		Args:  cobra.NoArgs,
		RunE: a.withFinish(func(cmd *cobra.Command) error {
			ctx := cmd.Context()
			mapper, err := a.mapper(ctx)
			if err != nil {
				return err
			}
			run := domain.NewRun(uuid.NewString(), a.cfg.Pair)
			res, err := a.pipeline(mapper).Run(ctx, run,
				a.pathOr(input, a.cfg.InputPath),
				a.pathOr(snap, a.cfg.SnapshotPath),
				a.pathOr(output, a.cfg.OutputPath),
			)
			if err != nil {
				return err
			}
			a.summarize(run, res)
			return nil
		}),
	}
	cmd.Flags().StringVar(&input, "input", "", "raw CSV path (default $INPUT_PATH)")
	cmd.Flags().StringVar(&snap, "snapshot", "", "snapshot path (default $SNAPSHOT_PATH)")
	cmd.Flags().StringVar(&output, "output", "", "PNG output path (default $OUTPUT_PATH)")
	return cmd
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat, a.stderr)
	a.metrics = observability.NewMetrics()
	return nil
}

// withFinish runs fn and then finish, joining their errors.
func (a *app) withFinish(fn func(cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		err := fn(cmd)
		return errors.Join(err, a.finish())
	}
}

// finish closes adapters and writes the metrics textfile.
func (a *app) finish() error {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func (a *app) pathOr(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func (a *app) pipeline(mapper *pipeline.Mapper) *pipeline.Pipeline {
	cleaner := pipeline.NewCleaner(a.stdout, a.logger, a.metrics)
	return pipeline.New(cleaner, mapper, snapshot.Store{}, a.logger, a.metrics)
}

// mapper wires the scoring, rendering and optional sink adapters selected by
// the config.
func (a *app) mapper(ctx context.Context) (*pipeline.Mapper, error) {
	cfg := a.cfg

	anchors, err := a.anchors()
	if err != nil {
		return nil, err
	}
	embedder, err := embedding.New(ctx, cfg, a.metrics, a.logger)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	opts := render.Options{
		Width:      vg.Length(cfg.RenderWidth) * vg.Inch,
		Height:     vg.Length(cfg.RenderHeight) * vg.Inch,
		DPI:        cfg.RenderDPI,
		View:       cfg.View,
		MarkerBase: cfg.MarkerBase,
	}

	var basemap render.Basemap
	if cfg.BasemapEnabled {
		client := tiles.NewClient(cfg.BasemapURL, cfg.BasemapUserAgent, cfg.BasemapTimeout, a.metrics, a.logger)
		fetcher := tiles.NewCachedFetcher(client, cfg.BasemapCacheSize, a.metrics)
		basemap = tiles.NewProvider(fetcher, opts.PixelWidth(), cfg.BasemapMaxTiles, a.logger)
		a.logger.Info("basemap enabled", "url", cfg.BasemapURL, "cache_size", cfg.BasemapCacheSize)
	} else {
		a.logger.Info("basemap disabled")
	}

	mopts := pipeline.MapperOptions{
		Anchors:   anchors,
		Threshold: cfg.SeverityThreshold,
		Params:    cfg.AggregateParams(),
		View:      cfg.View,
	}
	if cfg.LandmarkSource == "overpass" {
		mopts.Landmarks = overpass.NewSource(cfg.OverpassEndpoint, cfg.OverpassTimeout, a.logger)
	}
	if cfg.KafkaEnabled() {
		pub := kafkaadapter.NewPublisher(cfg, a.logger)
		a.closers = append(a.closers, pub)
		mopts.Publisher = pub
		a.logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if cfg.ReportPath != "" {
		mopts.Reporter = xlsx.NewReporter(cfg.ReportPath, a.logger)
	}

	renderer := render.New(opts, basemap, a.logger)
	return pipeline.NewMapper(embedder, renderer, mopts, a.logger, a.metrics), nil
}

func (a *app) anchors() (domain.AnchorSet, error) {
	if a.cfg.AnchorsFile == "" {
		return domain.DefaultAnchors(), nil
	}
	f, err := os.Open(a.cfg.AnchorsFile)
	if err != nil {
		return domain.AnchorSet{}, fmt.Errorf("anchors: %w", err)
	}
	defer f.Close()

	set, err := domain.LoadAnchors(f)
	if err != nil {
		return domain.AnchorSet{}, fmt.Errorf("anchors %s: %w", a.cfg.AnchorsFile, err)
	}
	a.logger.Info("anchors loaded", "path", a.cfg.AnchorsFile, "version", set.Version)
	return set, nil
}

func (a *app) summarize(run domain.Run, res pipeline.MapResult) {
	a.logger.Info("run complete",
		"run_id", run.ID,
		"baseline", run.Pair.Baseline,
		"comparison", run.Pair.Comparison,
		"descriptions", len(res.Table),
		"fallback_scores", res.Scores.Fallbacks,
		"unscored", res.Aggregate.Unscored,
		"out_of_window", res.Aggregate.OutOfWindow,
		"cells", res.Aggregate.Cells,
	)
}
