package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elxreno/shipgrid/internal/hclcfg"
)

// scenarioManifest builds a manifest whose compiler and strip tool are small
// shell stand-ins, publishing into a filesystem sink under root.
func scenarioManifest(t *testing.T, root string) string {
	t.Helper()

	srcDir := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))

	// Stand-in stripping tool: appends a marker so stripping is observable.
	toolPath := filepath.Join(root, "fakestrip")
	require.NoError(t, os.WriteFile(toolPath, []byte("#!/bin/sh\nprintf ' stripped' >> \"$1\"\n"), 0o755))

	manifest := fmt.Sprintf(`
release "filesorter" {
  source_dir = %q
  channels   = ["stable"]

  compiler = ["sh", "-c", "mkdir -p target/release && printf bin > target/release/filesorter && printf bin > target/release/filesorter.exe"]
  strip    = [%q]

  target "x86_64-unknown-linux-gnu" {
    family   = "linux"
    artifact = "filesorter"
    slug     = "linux-amd64"
  }

  target "x86_64-pc-windows-gnu" {
    family   = "windows"
    artifact = "filesorter.exe"
    slug     = "windows-amd64"
  }

  sink {
    kind = "fs"
    root = %q
  }
}
`, srcDir, toolPath, filepath.Join(root, "sink"))

	path := filepath.Join(root, "release.hcl")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o600))
	return path
}

func newTestApp(t *testing.T, cfg *Config) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return NewApp(out, cfg, hclcfg.NewLoader()), out
}

func TestRun_TagPushScenario(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfg, err := NewConfig(Config{
		EventKind:    "tag-push",
		Tag:          "v1.0",
		ManifestPath: scenarioManifest(t, root),
		LogFormat:    "text",
		LogLevel:     "error",
		WorkerCount:  1,
	})
	require.NoError(t, err)

	a, _ := newTestApp(t, cfg)
	require.Equal(t, "filesorter", a.Model().ArtifactBase)
	require.NoError(t, a.Run(context.Background(), cfg))

	releaseDir := filepath.Join(root, "sink", "releases", "v1.0")

	linuxArtifact, err := os.ReadFile(filepath.Join(releaseDir, "filesorter-stable-linux-amd64"))
	require.NoError(t, err)
	assert.Equal(t, "bin stripped", string(linuxArtifact), "the linux cell's binary must be stripped")

	windowsArtifact, err := os.ReadFile(filepath.Join(releaseDir, "filesorter-stable-windows-amd64"))
	require.NoError(t, err)
	assert.Equal(t, "bin", string(windowsArtifact), "the windows cell's binary must be untouched")

	entries, err := os.ReadDir(releaseDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRun_CodeChangeScenario(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfg, err := NewConfig(Config{
		EventKind:    "code-change",
		ManifestPath: scenarioManifest(t, root),
		LogFormat:    "text",
		LogLevel:     "error",
		WorkerCount:  1,
	})
	require.NoError(t, err)

	a, _ := newTestApp(t, cfg)
	require.NoError(t, a.Run(context.Background(), cfg))

	// Both artifacts live under one run-scoped directory.
	runsDir := filepath.Join(root, "sink", "runs")
	runs, err := os.ReadDir(runsDir)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	entries, err := os.ReadDir(filepath.Join(runsDir, runs[0].Name()))
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// No tag-addressed entry may be created for code changes.
	_, err = os.Stat(filepath.Join(root, "sink", "releases"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_UnrecognizedEventIsFatal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfg, err := NewConfig(Config{
		EventKind:    "schedule",
		ManifestPath: scenarioManifest(t, root),
		LogFormat:    "text",
		LogLevel:     "error",
		WorkerCount:  1,
	})
	require.NoError(t, err)

	a, _ := newTestApp(t, cfg)
	runErr := a.Run(context.Background(), cfg)
	require.Error(t, runErr)
	assert.ErrorContains(t, runErr, "unrecognized trigger event kind")

	// Fail-fast: no cell may have started.
	_, statErr := os.Stat(filepath.Join(root, "sink"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_FailedCellFailsTheRunButNotSiblings(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	manifestPath := scenarioManifest(t, root)

	// Rewrite the compiler so only the linux artifact appears; the windows
	// cell then fails its output-file check.
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	patched := bytes.Replace(data,
		[]byte(` && printf bin > target/release/filesorter.exe`),
		nil, 1)
	require.NoError(t, os.WriteFile(manifestPath, patched, 0o600))

	cfg, err := NewConfig(Config{
		EventKind:    "tag-push",
		Tag:          "v1.0",
		ManifestPath: manifestPath,
		ReportPath:   filepath.Join(root, "report.yaml"),
		LogFormat:    "text",
		LogLevel:     "error",
		WorkerCount:  2,
	})
	require.NoError(t, err)

	a, _ := newTestApp(t, cfg)
	runErr := a.Run(context.Background(), cfg)
	require.Error(t, runErr, "the run must fail when any cell fails")
	assert.ErrorContains(t, runErr, "windows-amd64/stable (build)")

	// The sibling cell still published.
	_, err = os.Stat(filepath.Join(root, "sink", "releases", "v1.0", "filesorter-stable-linux-amd64"))
	assert.NoError(t, err)

	// The aggregate report enumerates both cells.
	reportData, err := os.ReadFile(cfg.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(reportData), "status: failed")
	assert.Contains(t, string(reportData), "status: succeeded")
}

func TestRun_DryRunPrintsPlanWithoutSideEffects(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfg, err := NewConfig(Config{
		EventKind:    "tag-push",
		Tag:          "v1.0",
		ManifestPath: scenarioManifest(t, root),
		DryRun:       true,
		LogFormat:    "text",
		LogLevel:     "error",
		WorkerCount:  1,
	})
	require.NoError(t, err)

	a, out := newTestApp(t, cfg)
	require.NoError(t, a.Run(context.Background(), cfg))

	assert.Contains(t, out.String(), "linux-amd64/stable -> filesorter-stable-linux-amd64")
	assert.Contains(t, out.String(), "windows-amd64/stable -> filesorter-stable-windows-amd64")

	_, statErr := os.Stat(filepath.Join(root, "sink"))
	assert.True(t, os.IsNotExist(statErr), "a dry run must not publish anything")
}
