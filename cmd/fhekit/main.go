// Package main provides the entry point for the fhekit CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/fhekit/internal/cli"
	"github.com/mrz1836/fhekit/internal/signal"
)

// Set via ldflags at build time.
//
//nolint:gochecknoglobals // ldflags targets
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	h := signal.NewHandler(context.Background())
	err := cli.Execute(h.Context(), cli.BuildInfo{Version: version, Commit: commit, Date: date})
	h.Stop()
	os.Exit(cli.ExitCodeForError(err))
}
