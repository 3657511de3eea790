package app

import "errors"

// Config holds the per-run inputs for an App instance. The build matrix and
// sinks are static versioned configuration and live in the manifest instead.
type Config struct {
	EventKind string // trigger event kind
	Tag       string // release tag, tag-push events only

	ManifestPath string
	ReportPath   string
	DryRun       bool

	LogFormat   string
	LogLevel    string
	WorkerCount int
}

// NewConfig validates a run configuration.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.EventKind == "" {
		return nil, errors.New("EventKind is a required configuration field and cannot be empty")
	}
	if cfg.ManifestPath == "" {
		return nil, errors.New("ManifestPath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 1 {
		return nil, errors.New("WorkerCount must be at least 1")
	}
	return &cfg, nil
}
