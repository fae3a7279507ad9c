package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"honey-grader/internal/metrics"
	"honey-grader/internal/ml"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var port int

// ServeCmd exposes the saved model over HTTP
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predictions over HTTP",
	Long:  "Starts an HTTP server with /predict, /health, /model/info, /model/reload and /metrics",
	RunE:  runServe,
}

func init() {
	ServeCmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides SERVE_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if port == 0 {
		port = settings.ServePort
	}

	m := metrics.New()
	p, err := ml.NewPredictorWithMetrics(settings.ModelPath, settings.EncoderPath, metrics.NewWrapper(m))
	if err != nil {
		return err
	}

	server := ml.NewModelServer(p, port, m.Handler())
	if settings.StorePath != "" {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		server.WithHistory(store)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down model server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
