// Package cli parses command-line arguments into the application's run
// configuration and defines the exit-code contract of the binary.
package cli
