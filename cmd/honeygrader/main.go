package main

import (
	"errors"
	"os"

	"honey-grader/internal/cfg"
	"honey-grader/internal/dataset"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	logLevel    string
	dataPath    string
	modelPath   string
	encoderPath string

	settings cfg.Settings
)

var rootCmd = &cobra.Command{
	Use:           "honeygrader",
	Short:         "Grade honey quality from voltage sensor readings",
	Long:          "Trains a decision tree on honey sensor readings, evaluates it and serves predictions from the saved model",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "Dataset path or URL (csv or xlsx)")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Model artifact path")
	rootCmd.PersistentFlags().StringVar(&encoderPath, "encoder", "", "Label encoder artifact path")

	rootCmd.AddCommand(TrainCmd, PredictCmd, ServeCmd, RunsCmd, SampleCmd)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, dataset.ErrNotFound) {
			log.Fatal().Err(err).Str("file", settings.DataPath).Msg("Input file not found, check the data path")
		}
		log.Fatal().Err(err).Msg("honeygrader failed")
	}
}

func loadSettings(cmd *cobra.Command) error {
	// .env is optional
	_ = godotenv.Load()

	var err error
	if configPath != "" {
		settings, err = cfg.LoadFile(configPath)
	} else {
		settings, err = cfg.Load()
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		settings.LogLevel = logLevel
	}
	if flags.Changed("data") {
		settings.DataPath = dataPath
	}
	if flags.Changed("model") {
		settings.ModelPath = modelPath
	}
	if flags.Changed("encoder") {
		settings.EncoderPath = encoderPath
	}

	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return nil
}
