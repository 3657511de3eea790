// Package matrix expands the configured operating systems and toolchain
// channels into the full set of independent build cells.
package matrix

import (
	"context"
	"fmt"

	"github.com/elxreno/shipgrid/internal/config"
	"github.com/elxreno/shipgrid/internal/ctxlog"
)

// Cell is one (target, channel) combination. Each cell is processed as an
// independent build-publish unit; cells share no mutable state.
type Cell struct {
	Target  config.Target
	Channel string
}

// ID identifies the cell in logs and reports. (Slug, Channel) pairs are
// unique within a run, so the ID is too.
func (c Cell) ID() string {
	return fmt.Sprintf("%s/%s", c.Target.Slug, c.Channel)
}

// Expand cross-produces targets with channels. It is pure and deterministic:
// cells come out in configured order, targets outermost.
//
// A target missing a required join field, a duplicate slug, or an empty axis
// is a configuration error; the run must fail before any build time is spent
// on a matrix it cannot name artifacts for.
func Expand(ctx context.Context, targets []config.Target, channels []string) ([]Cell, error) {
	logger := ctxlog.FromContext(ctx)

	if len(targets) == 0 {
		return nil, config.Errorf("no targets configured")
	}
	if len(channels) == 0 {
		return nil, config.Errorf("no toolchain channels configured")
	}

	seenSlugs := make(map[string]string, len(targets))
	for _, t := range targets {
		if err := validateTarget(t); err != nil {
			return nil, err
		}
		if prev, dup := seenSlugs[t.Slug]; dup {
			return nil, config.Errorf("targets %q and %q share slug %q", prev, t.OS, t.Slug)
		}
		seenSlugs[t.Slug] = t.OS
	}

	cells := make([]Cell, 0, len(targets)*len(channels))
	for _, t := range targets {
		for _, ch := range channels {
			if ch == "" {
				return nil, config.Errorf("toolchain channel name must not be empty")
			}
			cells = append(cells, Cell{Target: t, Channel: ch})
		}
	}

	logger.Debug("Matrix expanded.", "targets", len(targets), "channels", len(channels), "cells", len(cells))
	return cells, nil
}

// validateTarget checks that a join-table row carries every field the
// pipeline needs to build and name the cell's artifact.
func validateTarget(t config.Target) error {
	switch {
	case t.OS == "":
		return config.Errorf("target with slug %q has no operating system", t.Slug)
	case t.Family == "":
		return config.Errorf("target %q has no platform family", t.OS)
	case t.Artifact == "":
		return config.Errorf("target %q has no artifact filename", t.OS)
	case t.Slug == "":
		return config.Errorf("target %q has no platform slug", t.OS)
	case t.OutputDir == "":
		return config.Errorf("target %q has no compiler output directory", t.OS)
	}
	return nil
}
