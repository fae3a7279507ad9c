package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSample(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Voltage_mV,Adulterant_Type,Concentration,Quality\n")
	for rep := 0; rep < 4; rep++ {
		fmt.Fprintf(&b, "%d,Water,0.0,Good\n", 510+rep)
		fmt.Fprintf(&b, "%d,Water,0.3,Medium\n", 480+rep)
		fmt.Fprintf(&b, "%d,Fe3O4,1,Medium\n", 465+rep)
		fmt.Fprintf(&b, "%d,Fe3O4,3,Poor\n", 420+rep)
	}
	path := filepath.Join(dir, "FYP.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTrainPredictRuns(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATA_PATH", writeSample(t, dir))
	t.Setenv("MODEL_PATH", filepath.Join(dir, "model.gob"))
	t.Setenv("ENCODER_PATH", filepath.Join(dir, "labels.gob"))
	t.Setenv("STORE_PATH", filepath.Join(dir, "store"))

	out, err := execute(t, "train", "--no-plots")
	require.NoError(t, err)
	assert.Contains(t, out, "Model Accuracy on Test Set:")
	assert.FileExists(t, filepath.Join(dir, "model.gob"))

	out, err = execute(t, "predict", "--voltage", "421", "--adulterant", "Fe3O4")
	require.NoError(t, err)
	assert.Contains(t, out, "Predicted quality: Poor")

	_, err = execute(t, "predict", "--voltage", "421", "--adulterant", "Syrup")
	assert.Error(t, err)

	out, err = execute(t, "runs", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "ACCURACY")
	assert.Contains(t, out, "gini")
}

func TestTrain_MissingFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATA_PATH", filepath.Join(dir, "missing.csv"))
	t.Setenv("MODEL_PATH", filepath.Join(dir, "model.gob"))
	t.Setenv("ENCODER_PATH", filepath.Join(dir, "labels.gob"))
	t.Setenv("STORE_PATH", "")

	_, err := execute(t, "train", "--no-plots")
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "model.gob"))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123abcd", shortID("0123abcd-ffff"))
	assert.Equal(t, "first", shortID("first"))
}

func TestSampleThenTrain(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "FYP.xlsx")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATA_PATH", data)
	t.Setenv("MODEL_PATH", filepath.Join(dir, "model.gob"))
	t.Setenv("ENCODER_PATH", filepath.Join(dir, "labels.gob"))
	t.Setenv("STORE_PATH", "")

	out, err := execute(t, "sample", "--out", data, "--replicates", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated 42 readings")
	assert.FileExists(t, data)

	out, err = execute(t, "train", "--no-plots")
	require.NoError(t, err)
	assert.Contains(t, out, "Total samples: 42")
}
