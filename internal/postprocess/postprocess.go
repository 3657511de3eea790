// Package postprocess applies platform-gated transformations to built
// binaries. The set of transformations is a closed table keyed by platform
// family; adding a platform-specific step means adding a row, never scattering
// branches through the pipeline.
package postprocess

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/elxreno/shipgrid/internal/build"
	"github.com/elxreno/shipgrid/internal/ctxlog"
)

// Transform mutates a binary in place.
type Transform func(ctx context.Context, art build.Artifact) error

// Table maps a platform family to its transformation. Families without a row
// are a no-op: the artifact bytes are left untouched.
type Table map[string]Transform

// NewTable builds the production table: debug-symbol stripping on the linux
// family, nothing elsewhere.
func NewTable(stripArgv []string) Table {
	return Table{
		"linux": stripTransform(stripArgv),
	}
}

// Apply runs the family's transformation, if any. A configured transformation
// that fails fails the cell; it is never silently skipped on a platform where
// it was configured to run.
func (t Table) Apply(ctx context.Context, art build.Artifact) error {
	logger := ctxlog.FromContext(ctx)

	transform, ok := t[art.Cell.Target.Family]
	if !ok {
		logger.Debug("No post-processing configured for platform family.", "family", art.Cell.Target.Family)
		return nil
	}

	logger.Info("Post-processing binary.", "family", art.Cell.Target.Family, "binary", art.Path)
	if err := transform(ctx, art); err != nil {
		return fmt.Errorf("post-processing failed for %s: %w", art.Cell.ID(), err)
	}
	return nil
}

// stripTransform runs the external stripping tool against the binary in place.
func stripTransform(argv []string) Transform {
	if len(argv) == 0 {
		argv = []string{"strip"}
	}
	return func(ctx context.Context, art build.Artifact) error {
		var output bytes.Buffer
		args := append(append([]string(nil), argv[1:]...), art.Path)
		cmd := exec.CommandContext(ctx, argv[0], args...)
		cmd.Stdout = &output
		cmd.Stderr = &output

		if err := cmd.Run(); err != nil {
			return fmt.Errorf("strip %s: %w: %s", art.Path, err, bytes.TrimSpace(output.Bytes()))
		}
		return nil
	}
}
