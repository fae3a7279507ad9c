package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"honey-grader/internal/pipeline"
	"honey-grader/internal/storage"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var skipPlots bool

// TrainCmd runs the full training pipeline
var TrainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train, evaluate and save the honey quality model",
	Long:  "Loads the sensor dataset, charts it, fits a decision tree on a stratified split, prints the evaluation report and saves the model and label encoder",
	RunE:  runTrain,
}

func init() {
	TrainCmd.Flags().BoolVar(&skipPlots, "no-plots", false, "Do not write charts")
}

func runTrain(cmd *cobra.Command, args []string) error {
	if skipPlots {
		settings.SkipPlots = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []pipeline.Option{pipeline.WithOutput(cmd.OutOrStdout())}
	if settings.StorePath != "" {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, pipeline.WithStore(store))
	}

	res, err := pipeline.New(settings, opts...).Run(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Str("run_id", res.RunID).
		Float64("accuracy", res.Accuracy).
		Int("charts", len(res.Charts)).
		Msg("Training run complete")
	return nil
}

func openStore() (*storage.Store, error) {
	if err := os.MkdirAll(settings.StorePath, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return storage.New(settings.StorePath)
}
