package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wtnb75/dirserve"
	"github.com/wtnb75/dirserve/internal/config"
	"github.com/wtnb75/dirserve/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the root directory until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, err := config.NewViper(cmd.Flags())
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	setupLogger(cmd.ErrOrStderr(), cfg.Verbose)

	fsys, err := dirserve.OpenRoot(cfg.Root)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.New(cfg, dirserve.NewHandler(fsys), cmd.OutOrStdout()).Run(ctx)
}
