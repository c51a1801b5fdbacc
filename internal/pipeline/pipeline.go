package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crime-change-map/internal/domain"
	"github.com/couchcryptid/crime-change-map/internal/observability"
)

// SnapshotStore persists the cleaned table between stages.
type SnapshotStore interface {
	Write(path string, snap domain.Snapshot) error
	Read(path string) (domain.Snapshot, error)
}

// Pipeline wires the clean and map stages to files on disk.
type Pipeline struct {
	cleaner *Cleaner
	mapper  *Mapper
	store   SnapshotStore
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// New creates a Pipeline with the given stages and observability.
func New(cleaner *Cleaner, mapper *Mapper, store SnapshotStore, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		cleaner: cleaner,
		mapper:  mapper,
		store:   store,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
	}
}

// SetClock replaces the clock used for stage timing. Tests use a fake clock.
func (p *Pipeline) SetClock(c clockwork.Clock) {
	p.clock = c
	if p.mapper != nil {
		p.mapper.clock = c
	}
}

// Clean reads the CSV at inputPath and writes the snapshot to snapshotPath.
func (p *Pipeline) Clean(ctx context.Context, inputPath, snapshotPath string) (domain.Snapshot, error) {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	start := p.clock.Now()

	f, err := os.Open(inputPath)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("clean: %w", err)
	}
	defer f.Close()

	snap, err := p.cleaner.Clean(ctx, f, inputPath)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("clean %s: %w", inputPath, err)
	}
	if err := p.store.Write(snapshotPath, snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("clean: %w", err)
	}

	elapsed := p.clock.Since(start)
	p.metrics.StageDuration.WithLabelValues("clean").Observe(elapsed.Seconds())
	p.logger.Info("snapshot written", "path", snapshotPath, "rows", len(snap.Incidents), "elapsed", elapsed)
	return snap, nil
}

// Map reads the snapshot at snapshotPath and renders the change map to
// outputPath.
func (p *Pipeline) Map(ctx context.Context, run domain.Run, snapshotPath, outputPath string) (MapResult, error) {
	snap, err := p.store.Read(snapshotPath)
	if err != nil {
		return MapResult{}, fmt.Errorf("map: %w", err)
	}
	p.logger.Info("snapshot loaded",
		"path", snapshotPath,
		"rows", len(snap.Incidents),
		"created_at", snap.CreatedAt,
	)
	return p.mapSnapshot(ctx, run, snap, outputPath)
}

// Run executes clean then map, reusing the in-memory snapshot.
func (p *Pipeline) Run(ctx context.Context, run domain.Run, inputPath, snapshotPath, outputPath string) (MapResult, error) {
	snap, err := p.Clean(ctx, inputPath, snapshotPath)
	if err != nil {
		return MapResult{}, err
	}
	return p.mapSnapshot(ctx, run, snap, outputPath)
}

func (p *Pipeline) mapSnapshot(ctx context.Context, run domain.Run, snap domain.Snapshot, outputPath string) (MapResult, error) {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	p.logger.Info("map started", "run_id", run.ID, "output", outputPath)

	out, err := os.Create(outputPath)
	if err != nil {
		return MapResult{}, fmt.Errorf("map: %w", err)
	}

	res, err := p.mapper.Map(ctx, run, snap, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("map: close output: %w", cerr)
	}
	if err != nil {
		os.Remove(outputPath) //nolint:errcheck // best effort on a partial image
		return MapResult{}, err
	}

	p.logger.Info("map written", "run_id", run.ID, "path", outputPath, "cells", len(res.Records))
	return res, nil
}
