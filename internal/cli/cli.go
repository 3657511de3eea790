package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/elxreno/shipgrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("shipgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
shipgrid - A cross-platform build-and-release orchestrator.

Builds one binary per (operating system x toolchain channel) matrix cell,
applies platform-gated post-processing, and publishes artifacts to run-scoped
storage or a tag-addressed release channel depending on the triggering event.

Usage:
  shipgrid [options] -event EVENT

Options:
`)
		flagSet.PrintDefaults()
	}

	eventFlag := flagSet.String("event", "", "Triggering event kind: 'code-change' or 'tag-push'.")
	tagFlag := flagSet.String("tag", "", "Release tag. Required for 'tag-push' events.")
	manifestFlag := flagSet.String("manifest", "release.hcl", "Path to the release manifest file or directory.")
	reportFlag := flagSet.String("report", "", "Write the aggregate run report as YAML to this path.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Expand the matrix and print the plan without building or publishing.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent workers for the cell pipelines.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	// A missing trigger must never look like a successful run to the CI
	// system invoking us.
	if *eventFlag == "" {
		flagSet.Usage()
		return nil, false, &ExitError{Code: 2, Message: "missing required -event flag"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg, err := app.NewConfig(app.Config{
		EventKind:    *eventFlag,
		Tag:          *tagFlag,
		ManifestPath: *manifestFlag,
		ReportPath:   *reportFlag,
		DryRun:       *dryRunFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		WorkerCount:  *workersFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, false, nil
}
