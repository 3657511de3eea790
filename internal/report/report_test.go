package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/elxreno/shipgrid/internal/config"
	"github.com/elxreno/shipgrid/internal/matrix"
	"github.com/elxreno/shipgrid/internal/pipeline"
	"github.com/elxreno/shipgrid/internal/publish"
	"github.com/elxreno/shipgrid/internal/trigger"
)

func cell(slug, channel string) matrix.Cell {
	return matrix.Cell{
		Target:  config.Target{OS: "os-" + slug, Family: "linux", Artifact: "filesorter", Slug: slug, OutputDir: "out"},
		Channel: channel,
	}
}

func TestFromResult(t *testing.T) {
	t.Parallel()

	policy, err := trigger.Classify(context.Background(), trigger.Event{Kind: trigger.KindTagPush, Tag: "v1.0"})
	require.NoError(t, err)

	result := &pipeline.Result{
		RunID:  "run-42",
		Policy: policy,
		Cells: []pipeline.CellResult{
			{
				Cell:   cell("windows-amd64", "stable"),
				Record: publish.Record{Name: "filesorter-stable-windows-amd64", Location: "release://v1.0/filesorter-stable-windows-amd64"},
			},
			{
				Cell:  cell("linux-amd64", "stable"),
				Stage: pipeline.StageBuild,
				Err:   errors.New("compiler exited with status 1"),
			},
		},
	}

	rep := FromResult(result)
	assert.Equal(t, "run-42", rep.RunID)
	assert.Equal(t, "released", rep.Policy)
	assert.Equal(t, "v1.0", rep.Tag)

	require.Len(t, rep.Cells, 2)
	// Sorted by slug, not by completion order.
	assert.Equal(t, "linux-amd64", rep.Cells[0].Slug)
	assert.Equal(t, "failed", rep.Cells[0].Status)
	assert.Equal(t, "build", rep.Cells[0].Stage)
	assert.Contains(t, rep.Cells[0].Error, "status 1")

	assert.Equal(t, "windows-amd64", rep.Cells[1].Slug)
	assert.Equal(t, "succeeded", rep.Cells[1].Status)
	assert.Equal(t, "filesorter-stable-windows-amd64", rep.Cells[1].Name)
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	rep := Report{
		RunID:  "run-42",
		Policy: "ephemeral",
		Cells: []Cell{
			{Slug: "linux-amd64", Channel: "stable", Status: "succeeded", Name: "filesorter-stable-linux-amd64"},
		},
	}

	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, rep.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, rep, decoded)
	assert.NotContains(t, string(data), "tag:", "empty tag must be omitted for ephemeral runs")
}
