package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/ideaforge-backend/internal/app"
)

var noWorkers bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and in-process workers unless --no-workers)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), app.StartOptions{HTTP: true, Workers: !noWorkers})
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run research workers only",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), app.StartOptions{Workers: true})
	},
}

func init() {
	serveCmd.Flags().BoolVar(&noWorkers, "no-workers", false, "serve the API without running research workers")
}

// run blocks until SIGINT/SIGTERM or a fatal serve error, then shuts down.
func run(parent context.Context, opts app.StartOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	errc, err := a.Start(ctx, opts)
	if err != nil {
		return err
	}
	log.Info("IdeaForge started", "http", opts.HTTP, "workers", opts.Workers, "dispatch_backend", cfg.DispatchBackend)

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
		return nil
	case err := <-errc:
		return err
	}
}
