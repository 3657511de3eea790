// Package report renders the aggregate run result into a machine-readable
// YAML document for pipeline operators.
package report

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/elxreno/shipgrid/internal/pipeline"
)

// Cell is one matrix cell's outcome in the report.
type Cell struct {
	Slug     string `yaml:"slug"`
	Channel  string `yaml:"channel"`
	Status   string `yaml:"status"`
	Name     string `yaml:"name,omitempty"`
	Location string `yaml:"location,omitempty"`
	Stage    string `yaml:"stage,omitempty"`
	Error    string `yaml:"error,omitempty"`
}

// Report is the full run summary.
type Report struct {
	RunID  string `yaml:"run_id"`
	Policy string `yaml:"policy"`
	Tag    string `yaml:"tag,omitempty"`
	Cells  []Cell `yaml:"cells"`
}

// FromResult flattens a pipeline result. Cells are sorted by (slug, channel)
// so reports are stable regardless of scheduling order.
func FromResult(res *pipeline.Result) Report {
	rep := Report{
		RunID:  res.RunID,
		Policy: res.Policy.Mode().String(),
	}
	if tag, ok := res.Policy.ReleaseTag(); ok {
		rep.Tag = tag
	}

	for _, c := range res.Cells {
		cell := Cell{
			Slug:    c.Cell.Target.Slug,
			Channel: c.Cell.Channel,
		}
		if c.Err != nil {
			cell.Status = "failed"
			cell.Stage = string(c.Stage)
			cell.Error = c.Err.Error()
		} else {
			cell.Status = "succeeded"
			cell.Name = c.Record.Name
			cell.Location = c.Record.Location
		}
		rep.Cells = append(rep.Cells, cell)
	}

	sort.Slice(rep.Cells, func(i, j int) bool {
		if rep.Cells[i].Slug != rep.Cells[j].Slug {
			return rep.Cells[i].Slug < rep.Cells[j].Slug
		}
		return rep.Cells[i].Channel < rep.Cells[j].Channel
	})
	return rep
}

// WriteFile marshals the report to YAML at the given path.
func (r Report) WriteFile(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}
	return nil
}
