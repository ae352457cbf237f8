// Package main is the entry point for the cftunnel binary.
//
// cftunnel is a terminal application that combines a TUI dashboard (built with
// Bubble Tea) and a CLI (built with Cobra) for managing cloudflared access
// tunnel profiles.
//
// When invoked on an interactive terminal without a subcommand, it launches
// the dashboard. When invoked with subcommands (e.g. "list", "start office"),
// or when stdout is not a terminal, it runs the corresponding CLI operation
// and exits.
//
// Usage:
//
//	cftunnel               # launch the dashboard (or list profiles when piped)
//	cftunnel list          # list tunnel profiles
//	cftunnel start office  # start the tunnel named office
//
// The CLI is constructed in internal/cli and the TUI in internal/ui. This file
// simply wires them together and handles top-level error reporting.
package main

import (
	"fmt"
	"os"

	"cftunnel/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()

	// Cobra handles argument parsing, subcommand routing, and help output.
	// Any error returned by a RunE handler is printed to stderr and the
	// process exits non-zero.
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
