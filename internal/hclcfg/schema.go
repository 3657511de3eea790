package hclcfg

import (
	"github.com/hashicorp/hcl/v2"
)

// manifestFile is the top-level structure of one manifest file for decoding.
type manifestFile struct {
	Releases []*releaseBlock `hcl:"release,block"`
}

// releaseBlock is a `release` block: the build matrix and collaborators for
// one tool. Exactly one release block is allowed across all manifest files.
type releaseBlock struct {
	// Artifact is the base name of published artifacts.
	Artifact string `hcl:"artifact,label"`

	SourceDir string   `hcl:"source_dir"`
	Channels  []string `hcl:"channels"`
	Compiler  []string `hcl:"compiler"`
	Strip     []string `hcl:"strip,optional"`

	CellTimeout  string         `hcl:"cell_timeout,optional"`
	NameTemplate hcl.Expression `hcl:"name_template,optional"`

	Targets []*targetBlock `hcl:"target,block"`
	Sink    *sinkBlock     `hcl:"sink,block"`
}

// targetBlock is one `target` block: a row of the OS join table.
type targetBlock struct {
	OS        string `hcl:"os,label"`
	Family    string `hcl:"family"`
	Artifact  string `hcl:"artifact"`
	Slug      string `hcl:"slug"`
	OutputDir string `hcl:"output_dir,optional"`
}

// sinkBlock is the `sink` block: the publish destination. Filesystem sinks
// use root; object-store sinks use the connection attributes.
type sinkBlock struct {
	Kind string `hcl:"kind"`

	Root string `hcl:"root,optional"`

	Endpoint  string `hcl:"endpoint,optional"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional"`
	Region    string `hcl:"region,optional"`
	Bucket    string `hcl:"bucket,optional"`
	UseSSL    bool   `hcl:"use_ssl,optional"`
}
