package main

import (
	"fmt"

	"honey-grader/internal/dataset"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	sampleOut        string
	sampleSeed       int64
	sampleReplicates int
	sampleNoise      float64
)

// SampleCmd writes a synthetic sensor dataset
var SampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate a synthetic sensor dataset",
	Long:  "Writes simulated voltage readings for water, Fe3O4 and sugar syrup adulteration to a csv or xlsx file that train can read",
	RunE:  runSample,
}

func init() {
	SampleCmd.Flags().StringVar(&sampleOut, "out", "", "Output file (csv or xlsx, defaults to the data path)")
	SampleCmd.Flags().Int64Var(&sampleSeed, "seed", 42, "Random seed for sensor noise")
	SampleCmd.Flags().IntVar(&sampleReplicates, "replicates", 5, "Readings per adulterant and concentration")
	SampleCmd.Flags().Float64Var(&sampleNoise, "noise", 4, "Standard deviation of sensor noise in mV")
}

func runSample(cmd *cobra.Command, args []string) error {
	out := sampleOut
	if out == "" {
		out = settings.DataPath
	}

	opts := dataset.DefaultSampleOptions()
	opts.Seed = sampleSeed
	opts.Replicates = sampleReplicates
	opts.Noise = sampleNoise
	opts.VoltageCol = settings.Columns.Voltage
	opts.AdulterCol = settings.Columns.Adulterant
	opts.ConcCol = settings.Columns.Concentration
	opts.QualityCol = settings.Columns.Quality

	table, err := dataset.GenerateSample(opts)
	if err != nil {
		return err
	}
	if err := table.WriteFile(out); err != nil {
		return err
	}

	log.Info().Str("file", out).Int("rows", table.Len()).Int64("seed", sampleSeed).Msg("Sample dataset written")
	fmt.Fprintf(cmd.OutOrStdout(), "Generated %d readings in %s\n", table.Len(), out)
	return nil
}
