package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/varmapfit/internal/server"
	"github.com/cwbudde/varmapfit/internal/store"
)

var (
	serveAddr    string
	serveDataDir string
	serveGrace   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Starts an HTTP server that accepts session files as fitting jobs.

  POST   /api/v1/jobs                      submit a YAML session
  GET    /api/v1/jobs                      list jobs
  GET    /api/v1/jobs/<id>                 job status and progress
  GET    /api/v1/jobs/<id>/stream          progress as server-sent events
  GET    /api/v1/jobs/<id>/surfaces[/name] result surfaces
  GET    /api/v1/runs[/<id>]               stored runs
  DELETE /api/v1/runs/<id>                 delete a stored run`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Base directory of the run store")
	serveCmd.Flags().DurationVar(&serveGrace, "grace", time.Minute, "How long shutdown waits for running jobs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	runStore, err := store.NewFSStore(serveDataDir)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}

	srv := server.NewServer(serveAddr, runStore)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		slog.Info("Received signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), serveGrace)
	defer cancel()
	return srv.Shutdown(ctx)
}
