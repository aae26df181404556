// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// empytrone captures a raw PCM stream into chunked sessions and writes a
// structured JSONL event log per session.
//
// Usage:
//
//	empytrone run [-config config.yaml] [-input path|-] [-session id]
//	empytrone inspect session.jsonl
//	empytrone version
//
// Exit codes:
//   - 0: success
//   - 1: runtime or validation failure
//   - 2: usage error
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/empytrone/internal/version"
)

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

func runCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	switch args[0] {
	case "run":
		return runCapture(args[1:], stderr)
	case "inspect":
		return runInspect(args[1:], stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, version.String())
		return 0
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  empytrone run [-config config.yaml] [-input path|-] [-session id]")
	fmt.Fprintln(w, "  empytrone inspect <session.jsonl>")
	fmt.Fprintln(w, "  empytrone version")
}
