package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func setupLogger(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetLogLoggerLevel(level)
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	root := newServeCmd()
	root.Use = "dirserve"
	root.Short = "Serve a directory over HTTP"
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.SetOut(stdout)
	root.AddCommand(newServeCmd(), newCompressCmd(), newCleanupCmd())
	return root
}

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		slog.Error("dirserve error", "error", err)
		os.Exit(1)
	}
}
