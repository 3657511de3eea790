// Package pipeline schedules matrix cells across a pool of concurrent
// workers. Each cell runs its full build → post-process → publish sequence
// independently: a failing cell is recorded and never aborts its siblings,
// while the run as a whole fails if any cell failed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/elxreno/shipgrid/internal/build"
	"github.com/elxreno/shipgrid/internal/ctxlog"
	"github.com/elxreno/shipgrid/internal/matrix"
	"github.com/elxreno/shipgrid/internal/postprocess"
	"github.com/elxreno/shipgrid/internal/publish"
	"github.com/elxreno/shipgrid/internal/trigger"
)

// Stage names the pipeline step a cell failed at.
type Stage string

const (
	StageBuild       Stage = "build"
	StagePostProcess Stage = "post-process"
	StagePublish     Stage = "publish"
)

// CellResult is the outcome of one cell's pipeline.
type CellResult struct {
	Cell   matrix.Cell
	Record publish.Record
	// Stage is set only when Err is non-nil.
	Stage Stage
	Err   error
}

// Result aggregates every cell's outcome for one run. Failures are collected,
// not raised mid-run, so the report can enumerate all of them and operators
// never have to rebuild already-succeeded platforms blindly.
type Result struct {
	RunID  string
	Policy trigger.Policy
	Cells  []CellResult
}

// Failed returns the results of all failed cells.
func (r *Result) Failed() []CellResult {
	var failed []CellResult
	for _, c := range r.Cells {
		if c.Err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

// Err returns nil when every cell completed its full pipeline, otherwise an
// error enumerating every failed cell and the stage it failed at.
func (r *Result) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, len(failed))
	for i, c := range failed {
		parts[i] = fmt.Sprintf("%s (%s): %v", c.Cell.ID(), c.Stage, c.Err)
	}
	return fmt.Errorf("%d of %d cells failed: %s", len(failed), len(r.Cells), strings.Join(parts, "; "))
}

// Pipeline executes cells. All fields are fixed before Run is called.
type Pipeline struct {
	Compiler  build.Compiler
	Post      postprocess.Table
	Publisher *publish.Publisher

	// Workers caps concurrent cell pipelines. Values below one run serially.
	Workers int
	// CellTimeout bounds each cell independently so a hang on one platform
	// cannot stall the others. Zero means no per-cell timeout; there is
	// deliberately no global one, builds may legitimately be slow.
	CellTimeout time.Duration
}

// Run processes every cell and returns the aggregate result. Cancelling ctx
// propagates to all in-flight cells; cells that already published are not
// rolled back, so a cancelled run may leave a partial release.
func (p *Pipeline) Run(ctx context.Context, runID string, policy trigger.Policy, cells []matrix.Cell) *Result {
	logger := ctxlog.FromContext(ctx)

	result := &Result{
		RunID:  runID,
		Policy: policy,
		Cells:  make([]CellResult, len(cells)),
	}

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(cells) {
		workers = len(cells)
	}

	readyChan := make(chan int, len(cells))
	for i := range cells {
		readyChan <- i
	}
	close(readyChan)

	logger.Debug("Starting worker pool.", "workers", workers, "cells", len(cells))

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(workerID int) {
			defer wg.Done()
			for i := range readyChan {
				// Each slot is owned by exactly one worker, no lock needed.
				result.Cells[i] = p.runCell(ctx, workerID, cells[i])
			}
		}(w)
	}
	wg.Wait()

	for _, c := range result.Failed() {
		logger.Error("Cell pipeline failed.", "cell", c.Cell.ID(), "stage", string(c.Stage), "error", c.Err)
	}
	return result
}

// runCell drives one cell through its full pipeline under an independent
// timeout.
func (p *Pipeline) runCell(ctx context.Context, workerID int, cell matrix.Cell) CellResult {
	logger := ctxlog.FromContext(ctx).With("workerID", workerID, "cell", cell.ID())
	res := CellResult{Cell: cell}

	if err := ctx.Err(); err != nil {
		res.Stage, res.Err = StageBuild, fmt.Errorf("cell skipped: %w", err)
		return res
	}

	cellCtx := ctx
	if p.CellTimeout > 0 {
		var cancel context.CancelFunc
		cellCtx, cancel = context.WithTimeout(ctx, p.CellTimeout)
		defer cancel()
	}
	// The cell attribute is tagged once here; stages take the logger from
	// the context as-is.
	cellCtx = ctxlog.WithLogger(cellCtx, logger)

	logger.Debug("Worker picked up cell.")

	art, err := p.Compiler.Build(cellCtx, cell)
	if err != nil {
		res.Stage, res.Err = StageBuild, stageErr(cellCtx, err)
		return res
	}

	if err := p.Post.Apply(cellCtx, art); err != nil {
		res.Stage, res.Err = StagePostProcess, stageErr(cellCtx, err)
		return res
	}

	record, err := p.Publisher.Publish(cellCtx, art)
	if err != nil {
		res.Stage, res.Err = StagePublish, stageErr(cellCtx, err)
		return res
	}

	res.Record = record
	logger.Debug("Cell pipeline completed.")
	return res
}

// stageErr annotates a failure that was caused by the cell's own deadline,
// so timeouts are distinguishable from genuine tool failures in the report.
func stageErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("cell timeout exceeded: %w", err)
	}
	return err
}
