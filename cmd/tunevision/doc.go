// Package main hosts the tunevision CLI entrypoint and command graph.
//
// The Cobra command tree exposes one-shot pipeline runs, the watch loop that
// dispatches runs as prompt/video pairs appear, read-only reports over run
// artifacts, the run history ledger, and environment diagnostics.
// Configuration resolution and logger setup live in commandContext so
// subcommands only deal with their own flags.
package main
