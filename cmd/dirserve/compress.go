package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wtnb75/dirserve/internal/precompress"
)

func newCompressCmd() *cobra.Command {
	opts := precompress.DefaultOptions()
	var dir string
	var verbose bool
	cmds := map[string]*string{}
	cmd := &cobra.Command{
		Use:   "compress",
		Short: "Write .gz, .br, .zst and .deflate sidecars for every file in a tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogger(cmd.ErrOrStderr(), verbose)
			encoders := precompress.DefaultEncoders()
			for _, e := range encoders {
				if c, ok := cmds[e.Name]; ok && *c != "" {
					if err := e.SetCommand(*c); err != nil {
						return err
					}
				}
			}
			return precompress.Compress(cmd.Context(), dir, encoders, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&dir, "dir", "", "target directory")
	f.BoolVar(&opts.DryRun, "dry-run", false, "dry run")
	f.Int64Var(&opts.MinSize, "min-size", opts.MinSize, "minimum file size to compress")
	f.Int64Var(&opts.MaxSize, "max-size", opts.MaxSize, "maximum file size to compress")
	f.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	for _, e := range precompress.DefaultEncoders() {
		cmds[e.Name] = f.String(e.Name+"-cmd", "", fmt.Sprintf("external %s command, the file path is appended", e.Name))
	}
	cmd.MarkFlagRequired("dir")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	opts := precompress.DefaultOptions()
	var dir string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove sidecars written by compress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogger(cmd.ErrOrStderr(), verbose)
			return precompress.Cleanup(cmd.Context(), dir, precompress.DefaultEncoders(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&dir, "dir", "", "target directory")
	f.BoolVar(&opts.OldOnly, "old", false, "remove only old compressed files")
	f.BoolVar(&opts.DryRun, "dry-run", false, "dry run")
	f.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	cmd.MarkFlagRequired("dir")
	return cmd
}
