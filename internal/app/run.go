package app

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/elxreno/shipgrid/internal/build"
	"github.com/elxreno/shipgrid/internal/config"
	"github.com/elxreno/shipgrid/internal/ctxlog"
	"github.com/elxreno/shipgrid/internal/matrix"
	"github.com/elxreno/shipgrid/internal/pipeline"
	"github.com/elxreno/shipgrid/internal/postprocess"
	"github.com/elxreno/shipgrid/internal/publish"
	"github.com/elxreno/shipgrid/internal/report"
	"github.com/elxreno/shipgrid/internal/trigger"
)

// Run executes one orchestration run: classify the trigger, expand the
// matrix, drive every cell through its pipeline, and report the aggregate
// outcome. The returned error is non-nil if any cell failed at any stage.
func (a *App) Run(ctx context.Context, cfg *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	// Classification and expansion happen before any build time is spent;
	// both fail the whole run on a configuration error.
	policy, err := trigger.Classify(ctx, trigger.Event{Kind: cfg.EventKind, Tag: cfg.Tag})
	if err != nil {
		return err
	}

	cells, err := matrix.Expand(ctx, a.model.Targets, a.model.Channels)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	a.logger.Info("Run starting.", "runID", runID, "policy", policy.Mode().String(), "cells", len(cells))

	tag, _ := policy.ReleaseTag()
	namer := publish.Namer{Base: a.model.ArtifactBase, Template: a.model.NameTemplate}

	if cfg.DryRun {
		return a.printPlan(cells, namer, tag)
	}

	ephemeral, release, err := newSinks(a.model, runID)
	if err != nil {
		return err
	}

	// Each cell gets its own staging subdirectory; the whole tree lives only
	// as long as the run.
	stageDir, err := os.MkdirTemp("", "shipgrid-stage-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stageDir)

	pipe := &pipeline.Pipeline{
		Compiler:    &build.ExecCompiler{SourceDir: a.model.SourceDir, Argv: a.model.CompilerArgv, StageDir: stageDir},
		Post:        postprocess.NewTable(a.model.StripArgv),
		Publisher:   publish.New(policy, namer, ephemeral, release),
		Workers:     cfg.WorkerCount,
		CellTimeout: a.model.CellTimeout,
	}
	result := pipe.Run(ctx, runID, policy, cells)

	if cfg.ReportPath != "" {
		if err := report.FromResult(result).WriteFile(cfg.ReportPath); err != nil {
			a.logger.Error("Failed to write run report.", "path", cfg.ReportPath, "error", err)
		} else {
			a.logger.Info("Run report written.", "path", cfg.ReportPath)
		}
	}

	if err := result.Err(); err != nil {
		return err
	}
	a.logger.Info("Run finished.", "runID", runID, "cells", len(cells))
	return nil
}

// printPlan writes the expanded matrix and computed names without touching
// the compiler or the sinks.
func (a *App) printPlan(cells []matrix.Cell, namer publish.Namer, tag string) error {
	for _, cell := range cells {
		name, err := namer.Name(cell, tag)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.outW, "%s -> %s\n", cell.ID(), name)
	}
	return nil
}

// newSinks builds the run's publish sinks from the manifest. Both sink roles
// are served by one store; the dispatch policy decides which role is used.
func newSinks(m *config.Model, runID string) (publish.EphemeralSink, publish.ReleaseSink, error) {
	switch m.Sink.Kind {
	case config.SinkFS:
		store := &publish.FSStore{Root: m.Sink.FS.Root, RunID: runID}
		return store, store, nil
	case config.SinkS3:
		store, err := publish.NewS3Store(*m.Sink.S3, runID)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, config.Errorf("unknown sink kind %q", m.Sink.Kind)
	}
}
