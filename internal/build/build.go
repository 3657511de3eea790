// Package build invokes the external compiler for one matrix cell and hands
// the resulting binary to the rest of the cell's pipeline.
package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/elxreno/shipgrid/internal/ctxlog"
	"github.com/elxreno/shipgrid/internal/matrix"
)

// Artifact is a built binary on the local filesystem. It is exclusively owned
// by the cell's pipeline until the publisher takes it over.
type Artifact struct {
	Path string
	Cell matrix.Cell
}

// Compiler produces a binary for one matrix cell. The orchestrator treats it
// as an opaque collaborator: exit zero plus a file at the expected path is
// success, anything else fails the cell.
type Compiler interface {
	Build(ctx context.Context, cell matrix.Cell) (Artifact, error)
}

// ExecCompiler runs a configured command per cell, e.g.
//
//	["cargo", "+${channel}", "build", "--release", "--target", "${os}"]
//
// with ${channel}, ${os} and ${slug} expanded from the cell before execution.
//
// The compiler drops its output at a fixed per-target path, shared by every
// channel of that target. Each cell therefore stages the binary to its own
// directory under StageDir before its pipeline continues; the staged copy is
// the only file the cell owns, and a sibling re-running the compiler cannot
// touch it.
type ExecCompiler struct {
	// SourceDir is the working directory containing the tool's source tree.
	SourceDir string
	// Argv is the compiler command template. Must not be empty.
	Argv []string
	// StageDir receives one subdirectory per cell. Must not be empty.
	StageDir string

	// mu serializes compiler invocation plus staging: concurrent compiler
	// runs in one source tree would clobber each other's output files.
	mu sync.Mutex
}

// Build implements Compiler. It writes to the local filesystem only; no
// network or publish action happens here.
func (c *ExecCompiler) Build(ctx context.Context, cell matrix.Cell) (Artifact, error) {
	logger := ctxlog.FromContext(ctx)

	if c.StageDir == "" {
		return Artifact{}, fmt.Errorf("no staging directory configured")
	}

	argv := expandArgv(c.Argv, cell)
	logger.Info("Invoking compiler.", "command", strings.Join(argv, " "), "dir", c.SourceDir)

	c.mu.Lock()
	defer c.mu.Unlock()

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.SourceDir
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return Artifact{}, fmt.Errorf("compiler failed for %s: %w: %s", cell.ID(), err, tail(&output))
	}

	outPath := filepath.Join(c.SourceDir, cell.Target.OutputDir, cell.Target.Artifact)
	if _, err := os.Stat(outPath); err != nil {
		return Artifact{}, fmt.Errorf("compiler exited zero but produced no binary at %s: %w", outPath, err)
	}

	stagedPath, err := c.stage(outPath, cell)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to stage binary for %s: %w", cell.ID(), err)
	}

	logger.Info("Compiler finished.", "binary", stagedPath)
	return Artifact{Path: stagedPath, Cell: cell}, nil
}

// stage copies the shared compiler output to the cell's own directory while
// the invocation lock is still held.
func (c *ExecCompiler) stage(outPath string, cell matrix.Cell) (string, error) {
	dir := filepath.Join(c.StageDir, fmt.Sprintf("%s-%s", cell.Target.Slug, cell.Channel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dstPath := filepath.Join(dir, cell.Target.Artifact)

	src, err := os.Open(outPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return dstPath, nil
}

// expandArgv substitutes cell metadata into the command template.
func expandArgv(argv []string, cell matrix.Cell) []string {
	r := strings.NewReplacer(
		"${channel}", cell.Channel,
		"${os}", cell.Target.OS,
		"${slug}", cell.Target.Slug,
	)
	out := make([]string, len(argv))
	for i, tok := range argv {
		out[i] = r.Replace(tok)
	}
	return out
}

// tail trims compiler output to the last few lines so a failed cell's error
// stays readable in the aggregate report.
func tail(buf *bytes.Buffer) string {
	const maxLines = 10
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}
