// Package app wires the orchestrator together: logger construction, manifest
// loading, trigger classification, matrix expansion, and the cell pipeline
// run, in that order.
package app
