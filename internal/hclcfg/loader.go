// Package hclcfg provides the concrete HCL implementation of the manifest
// loader interface defined in the `config` package. It is responsible for
// file discovery, HCL parsing, and translation into the agnostic model.
package hclcfg

import (
	"context"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/elxreno/shipgrid/internal/config"
	"github.com/elxreno/shipgrid/internal/ctxlog"
	"github.com/elxreno/shipgrid/internal/fsutil"
)

// defaultOutputDir is where the compiler drops binaries when a target does
// not say otherwise. Matches a cargo release build.
const defaultOutputDir = "target/release"

// Loader implements config.Loader for HCL manifests.
type Loader struct{}

// NewLoader creates a new HCL manifest loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses the manifest at path (a file, or a directory of .hcl files)
// into the config model. Any malformation is a configuration error; the run
// must not start on a manifest it cannot fully interpret.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.CollectFiles(path, ".hcl")
	if err != nil {
		return nil, config.Errorf("failed to locate manifest: %v", err)
	}
	logger.Debug("Manifest files located.", "count", len(files))

	parser := hclparse.NewParser()
	var release *releaseBlock
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, config.Errorf("failed to parse %s: %s", file, diags.Error())
		}

		var parsed manifestFile
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &parsed); diags.HasErrors() {
			return nil, config.Errorf("failed to decode %s: %s", file, diags.Error())
		}

		for _, r := range parsed.Releases {
			if release != nil {
				return nil, config.Errorf("duplicate release block %q in %s", r.Artifact, file)
			}
			release = r
		}
	}
	if release == nil {
		return nil, config.Errorf("no release block found under %s", path)
	}

	model, err := translate(release)
	if err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Manifest loaded.", "artifact", model.ArtifactBase,
		"targets", len(model.Targets), "channels", len(model.Channels))
	return model, nil
}

// translate converts the HCL-specific schema into the agnostic model.
func translate(r *releaseBlock) (*config.Model, error) {
	model := &config.Model{
		ArtifactBase: r.Artifact,
		SourceDir:    r.SourceDir,
		Channels:     r.Channels,
		CompilerArgv: r.Compiler,
		StripArgv:    r.Strip,
		NameTemplate: r.NameTemplate,
	}

	if r.CellTimeout != "" {
		d, err := time.ParseDuration(r.CellTimeout)
		if err != nil {
			return nil, config.Errorf("invalid cell_timeout %q: %v", r.CellTimeout, err)
		}
		model.CellTimeout = d
	}

	for _, t := range r.Targets {
		outputDir := t.OutputDir
		if outputDir == "" {
			outputDir = defaultOutputDir
		}
		model.Targets = append(model.Targets, config.Target{
			OS:        t.OS,
			Family:    t.Family,
			Artifact:  t.Artifact,
			Slug:      t.Slug,
			OutputDir: outputDir,
		})
	}

	if r.Sink == nil {
		return nil, config.Errorf("release %q has no sink block", r.Artifact)
	}
	model.Sink = translateSink(r.Sink)
	return model, nil
}

// translateSink builds the sink config. Object-store credentials may be kept
// out of the versioned manifest and supplied via the environment instead.
func translateSink(s *sinkBlock) config.Sink {
	sink := config.Sink{Kind: s.Kind}
	switch s.Kind {
	case config.SinkFS:
		sink.FS = &config.FSSink{Root: s.Root}
	case config.SinkS3:
		sink.S3 = &config.S3Sink{
			Endpoint:  s.Endpoint,
			AccessKey: envFallback(s.AccessKey, "SHIPGRID_S3_ACCESS_KEY"),
			SecretKey: envFallback(s.SecretKey, "SHIPGRID_S3_SECRET_KEY"),
			Region:    s.Region,
			Bucket:    s.Bucket,
			UseSSL:    s.UseSSL,
		}
	}
	return sink
}

func envFallback(value, envKey string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envKey)
}
