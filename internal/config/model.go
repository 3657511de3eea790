package config

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
)

// Error is a fatal configuration error. It aborts the whole run before any
// matrix cell starts; it is never collected into a per-cell result.
type Error struct {
	Reason string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "configuration error: " + e.Reason
}

// Errorf builds a configuration Error from a format string.
func Errorf(format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// Target is one row of the operating-system join table. Every OS in the
// execution matrix must have exactly one Target, or artifact names cannot
// be computed.
type Target struct {
	// OS is the identifier handed to the external compiler.
	OS string
	// Family selects platform-gated post-processing ("linux", "windows", ...).
	Family string
	// Artifact is the filename the compiler leaves in OutputDir.
	Artifact string
	// Slug is the human-readable platform identifier used in published names.
	// Unique across all targets.
	Slug string
	// OutputDir is where the compiler drops Artifact, relative to the source
	// directory.
	OutputDir string
}

// Sink kinds accepted in the manifest.
const (
	SinkFS = "fs"
	SinkS3 = "s3"
)

// FSSink configures filesystem-backed artifact storage rooted at a directory.
type FSSink struct {
	Root string
}

// S3Sink configures object-store-backed artifact storage.
type S3Sink struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// Sink is the configured publish destination. Exactly one of FS or S3 is set,
// matching Kind.
type Sink struct {
	Kind string
	FS   *FSSink
	S3   *S3Sink
}

// Model is the loaded release manifest: the build matrix, the external
// collaborators, and the publish destination. It is static, versioned
// configuration; run inputs (trigger event, tag) arrive separately via the CLI.
type Model struct {
	// ArtifactBase is the base name of published artifacts, e.g. "filesorter".
	ArtifactBase string
	// SourceDir is the working directory handed to the compiler.
	SourceDir string

	Targets  []Target
	Channels []string

	// CompilerArgv is the external compiler command. Tokens may reference
	// ${channel}, ${os} and ${slug}, expanded per matrix cell.
	CompilerArgv []string
	// StripArgv is the debug-symbol stripping command for the linux family.
	// The binary path is appended as the final argument.
	StripArgv []string

	// CellTimeout bounds each cell's pipeline independently. Zero disables
	// the per-cell timeout; there is never a global one.
	CellTimeout time.Duration

	// NameTemplate optionally overrides the published-name scheme. It is
	// evaluated per cell with the string variables artifact, channel, slug
	// and tag. Nil selects "${artifact}-${channel}-${slug}".
	NameTemplate hcl.Expression

	Sink Sink
}

// Validate checks the parts of the model that are not owned by a downstream
// component. Join-table integrity is the matrix expander's contract and is
// checked there.
func (m *Model) Validate() error {
	if m.ArtifactBase == "" {
		return Errorf("artifact base name must not be empty")
	}
	if m.SourceDir == "" {
		return Errorf("source directory must not be empty")
	}
	if len(m.CompilerArgv) == 0 {
		return Errorf("compiler command must not be empty")
	}
	switch m.Sink.Kind {
	case SinkFS:
		if m.Sink.FS == nil || m.Sink.FS.Root == "" {
			return Errorf("fs sink requires a root directory")
		}
	case SinkS3:
		if m.Sink.S3 == nil {
			return Errorf("s3 sink requires connection settings")
		}
		if m.Sink.S3.Endpoint == "" || m.Sink.S3.Bucket == "" {
			return Errorf("s3 sink requires endpoint and bucket")
		}
	default:
		return Errorf("unknown sink kind %q", m.Sink.Kind)
	}
	return nil
}

// Loader loads a manifest from a file or a directory of manifest files into
// the format-agnostic model.
type Loader interface {
	Load(ctx context.Context, path string) (*Model, error)
}
