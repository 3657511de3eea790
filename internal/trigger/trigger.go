// Package trigger classifies the event that started a run and selects the
// dispatch policy that routes finished artifacts.
package trigger

import (
	"context"

	"github.com/elxreno/shipgrid/internal/config"
	"github.com/elxreno/shipgrid/internal/ctxlog"
)

// Event kinds delivered by the version-control host.
const (
	KindCodeChange = "code-change"
	KindTagPush    = "tag-push"
)

// Event is the run's triggering event. Tag is meaningful only for tag pushes.
type Event struct {
	Kind string
	Tag  string
}

// Mode distinguishes the two dispatch policy variants.
type Mode int

const (
	// Ephemeral stores artifacts under run-scoped names, discoverable only
	// by pipeline operators.
	Ephemeral Mode = iota
	// Released publishes artifacts under permanent tag-addressed names.
	Released
)

// String returns the mode name for logs and reports.
func (m Mode) String() string {
	if m == Released {
		return "released"
	}
	return "ephemeral"
}

// Policy is the dispatch policy for one run. It is selected once by Classify
// and immutable afterwards. The release tag is carried only by the Released
// variant; a publisher cannot accidentally read a tag that does not exist.
type Policy struct {
	mode Mode
	tag  string
}

// Mode returns the policy variant.
func (p Policy) Mode() Mode { return p.mode }

// ReleaseTag returns the tag and true when the policy is Released.
func (p Policy) ReleaseTag() (string, bool) {
	if p.mode == Released {
		return p.tag, true
	}
	return "", false
}

// Classify maps a triggering event onto a dispatch policy.
//
// An unrecognized event kind is a fatal configuration error: proceeding with
// a silently defaulted policy could publish an unintended release.
func Classify(ctx context.Context, ev Event) (Policy, error) {
	logger := ctxlog.FromContext(ctx)

	switch ev.Kind {
	case KindCodeChange:
		logger.Debug("Trigger classified.", "kind", ev.Kind, "policy", Ephemeral.String())
		return Policy{mode: Ephemeral}, nil
	case KindTagPush:
		if ev.Tag == "" {
			return Policy{}, config.Errorf("tag-push event carries no tag")
		}
		logger.Debug("Trigger classified.", "kind", ev.Kind, "policy", Released.String(), "tag", ev.Tag)
		return Policy{mode: Released, tag: ev.Tag}, nil
	default:
		return Policy{}, config.Errorf("unrecognized trigger event kind %q", ev.Kind)
	}
}
