// Package publish routes finished artifacts to the sink selected by the
// run's dispatch policy and computes their deterministic published names.
package publish

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/elxreno/shipgrid/internal/build"
	"github.com/elxreno/shipgrid/internal/ctxlog"
	"github.com/elxreno/shipgrid/internal/matrix"
	"github.com/elxreno/shipgrid/internal/trigger"
)

// EphemeralSink accepts artifacts under run-scoped names. Entries are keyed
// by run, so no overwrite semantics are needed.
type EphemeralSink interface {
	Store(ctx context.Context, name string, srcPath string) (location string, err error)
}

// ReleaseSink accepts artifacts under permanent tag-addressed names with
// overwrite semantics: re-publishing the same (tag, name) replaces the prior
// entry so a re-run converges to one published state.
type ReleaseSink interface {
	Publish(ctx context.Context, tag string, name string, srcPath string) (location string, err error)
}

// Namer computes published names. The default scheme is
// "{artifact}-{channel}-{slug}"; a manifest may override it with an HCL
// template evaluated per cell.
type Namer struct {
	Base     string
	Template hcl.Expression
}

// Name computes the published name for one cell. tag is empty for ephemeral
// runs. No caller mutates a name after computation.
func (n Namer) Name(cell matrix.Cell, tag string) (string, error) {
	if n.Template == nil {
		return fmt.Sprintf("%s-%s-%s", n.Base, cell.Channel, cell.Target.Slug), nil
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"artifact": cty.StringVal(n.Base),
			"channel":  cty.StringVal(cell.Channel),
			"slug":     cty.StringVal(cell.Target.Slug),
			"tag":      cty.StringVal(tag),
		},
	}
	val, diags := n.Template.Value(evalCtx)
	if diags.HasErrors() {
		return "", fmt.Errorf("name template evaluation failed: %s", diags.Error())
	}
	val, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("name template must produce a string: %w", err)
	}
	if val.IsNull() || val.AsString() == "" {
		return "", fmt.Errorf("name template produced an empty name for cell %s", cell.ID())
	}
	return val.AsString(), nil
}

// Record describes one published artifact.
type Record struct {
	Name     string
	Location string
}

// Publisher transfers artifacts to the sink chosen by the dispatch policy.
// The policy and sinks are fixed for the run's lifetime; Publisher carries no
// ambient process-wide state, keeping cell pipelines independently testable.
type Publisher struct {
	policy    trigger.Policy
	namer     Namer
	ephemeral EphemeralSink
	release   ReleaseSink
}

// New builds a Publisher for one run.
func New(policy trigger.Policy, namer Namer, ephemeral EphemeralSink, release ReleaseSink) *Publisher {
	return &Publisher{
		policy:    policy,
		namer:     namer,
		ephemeral: ephemeral,
		release:   release,
	}
}

// Publish computes the artifact's published name and hands it to the sink.
// Ownership of the artifact ends here; a failure is reported for this cell
// only and never retried automatically.
func (p *Publisher) Publish(ctx context.Context, art build.Artifact) (Record, error) {
	logger := ctxlog.FromContext(ctx)

	tag, released := p.policy.ReleaseTag()
	name, err := p.namer.Name(art.Cell, tag)
	if err != nil {
		return Record{}, err
	}

	var location string
	if released {
		logger.Info("Publishing release artifact.", "name", name, "tag", tag)
		location, err = p.release.Publish(ctx, tag, name, art.Path)
	} else {
		logger.Info("Storing run-scoped artifact.", "name", name)
		location, err = p.ephemeral.Store(ctx, name, art.Path)
	}
	if err != nil {
		return Record{}, fmt.Errorf("publish failed for %s: %w", art.Cell.ID(), err)
	}

	logger.Info("Artifact published.", "name", name, "location", location)
	return Record{Name: name, Location: location}, nil
}
