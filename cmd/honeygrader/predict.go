package main

import (
	"fmt"

	"honey-grader/internal/ml"

	"github.com/spf13/cobra"
)

var (
	voltage    float64
	adulterant string
)

// PredictCmd classifies a single reading with the saved model
var PredictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the quality of one reading",
	Long:  "Loads the saved model and label encoder and classifies a voltage reading for the given adulterant type",
	RunE:  runPredict,
}

func init() {
	PredictCmd.Flags().Float64Var(&voltage, "voltage", 0, "Sensor voltage in mV")
	PredictCmd.Flags().StringVar(&adulterant, "adulterant", "", "Adulterant type, as spelled in the training data")
	_ = PredictCmd.MarkFlagRequired("voltage")
	_ = PredictCmd.MarkFlagRequired("adulterant")
}

func runPredict(cmd *cobra.Command, args []string) error {
	p, err := ml.NewPredictor(settings.ModelPath, settings.EncoderPath)
	if err != nil {
		return err
	}

	pred, err := p.PredictRow(voltage, adulterant)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Predicted quality: %s\n", pred.Quality)
	for _, cp := range pred.Probabilities {
		fmt.Fprintf(out, "  %-10s %.2f\n", cp.Quality, cp.Probability)
	}
	return nil
}
