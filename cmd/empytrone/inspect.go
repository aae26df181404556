// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/ManuGH/empytrone/internal/eventlog"
)

func runInspect(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("empytrone inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: exactly one session log file is required")
		return 2
	}
	path := fs.Arg(0)

	events, err := eventlog.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Read error in %s:\n  %v\n", path, err)
		return 1
	}
	printSummary(stdout, path, eventlog.Summarize(events))
	if err := eventlog.Verify(events); err != nil {
		fmt.Fprintf(stderr, "Verification failed for %s:\n  %v\n", path, err)
		return 1
	}
	fmt.Fprintf(stdout, "✓ %s is consistent\n", path)
	return 0
}

func printSummary(w io.Writer, path string, s eventlog.Summary) {
	fmt.Fprintf(w, "file:        %s\n", path)
	fmt.Fprintf(w, "session:     %s\n", s.SessionID)
	fmt.Fprintf(w, "events:      %d\n", s.Events)
	fmt.Fprintf(w, "segments:    %d\n", s.Segments)
	fmt.Fprintf(w, "chunks:      %d (%d bytes)\n", s.Chunks, s.ChunkBytes)
	if s.LastSeqID != nil {
		fmt.Fprintf(w, "last seq:    %d\n", *s.LastSeqID)
	}
	fmt.Fprintf(w, "last state:  %s\n", s.LastState)
	fmt.Fprintf(w, "duration:    %dms\n", s.DurationMs)

	names := make([]string, 0, len(s.ByName))
	for name := range s.ByName {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "by event:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-28s %d\n", name, s.ByName[name])
	}
}
