package ml

import (
	"path/filepath"
	"sync"
	"testing"

	"honey-grader/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetrics struct {
	predictions map[string]int
	failures    int
	latencies   int
}

func (f *fakeMetrics) PredictionsInc(quality string) {
	if f.predictions == nil {
		f.predictions = make(map[string]int)
	}
	f.predictions[quality]++
}
func (f *fakeMetrics) PredictionFailuresInc()             { f.failures++ }
func (f *fakeMetrics) PredictionLatencyObserve(_ float64) { f.latencies++ }

func writeArtifacts(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.gob")
	encoderPath := filepath.Join(dir, "labels.gob")
	require.NoError(t, SaveModel(modelPath, fittedArtifact(t)))
	require.NoError(t, SaveLabelEncoder(encoderPath, sampleLabels()))
	return modelPath, encoderPath
}

func TestPredictor_PredictRow(t *testing.T) {
	modelPath, encoderPath := writeArtifacts(t)
	m := &fakeMetrics{}
	p, err := NewPredictorWithMetrics(modelPath, encoderPath, m)
	require.NoError(t, err)

	tests := []struct {
		voltage    float64
		adulterant string
		want       string
	}{
		{505, "Water", "Good"},
		{476, "Water", "Medium"},
		{465, "Fe3O4", "Medium"},
		{418, "Fe3O4", "Poor"},
	}
	for _, tt := range tests {
		pred, err := p.PredictRow(tt.voltage, tt.adulterant)
		require.NoError(t, err)
		assert.Equal(t, tt.want, pred.Quality)

		require.Len(t, pred.Probabilities, 3)
		assert.Equal(t, "Good", pred.Probabilities[0].Quality)
		assert.InDelta(t, 1.0, pred.Probabilities[pred.Code].Probability, 1e-12)
	}
	assert.Equal(t, 2, m.predictions["Medium"])
	assert.Equal(t, 4, m.latencies)

	_, err = p.PredictRow(480, "Syrup")
	assert.ErrorIs(t, err, features.ErrUnknownCategory)
	assert.Equal(t, 1, m.failures)
}

func TestPredictor_PredictVector(t *testing.T) {
	modelPath, encoderPath := writeArtifacts(t)
	p, err := NewPredictor(modelPath, encoderPath)
	require.NoError(t, err)

	names := []string{"Voltage_mV", "Adulterant_Type_Fe3O4", "Adulterant_Type_Water"}
	pred, err := p.PredictVector(names, []float64{420, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, "Poor", pred.Quality)
	assert.Equal(t, 2, pred.Code)

	_, err = p.PredictVector([]string{"Adulterant_Type_Fe3O4", "Voltage_mV", "Adulterant_Type_Water"}, []float64{1, 420, 0})
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestPredictor_RejectsInconsistentArtifacts(t *testing.T) {
	modelPath, _ := writeArtifacts(t)
	encoderPath := filepath.Join(t.TempDir(), "labels.gob")
	require.NoError(t, SaveLabelEncoder(encoderPath, (&features.LabelEncoder{}).Fit([]string{"Good", "Poor"})))

	_, err := NewPredictor(modelPath, encoderPath)
	assert.ErrorIs(t, err, ErrFeatureMismatch)

	_, err = NewPredictor(filepath.Join(t.TempDir(), "missing.gob"), encoderPath)
	assert.Error(t, err)
}

func TestPredictor_Info(t *testing.T) {
	modelPath, encoderPath := writeArtifacts(t)
	p, err := NewPredictor(modelPath, encoderPath)
	require.NoError(t, err)

	info := p.Info()
	assert.Equal(t, modelPath, info.ModelPath)
	assert.Equal(t, []string{"Good", "Medium", "Poor"}, info.Classes)
	assert.Len(t, info.Importances, 3)
	assert.Equal(t, "gini", info.Criterion)
	assert.Positive(t, info.Leaves)

	require.NoError(t, p.Reload())
}

// syrupArtifact is fitted on a wider one-hot layout than fittedArtifact.
func syrupArtifact(t *testing.T) *ModelArtifact {
	t.Helper()
	X := [][]float64{
		{510, 0, 0, 1}, {500, 0, 0, 1}, {470, 1, 0, 0}, {465, 1, 0, 0},
		{490, 0, 1, 0}, {485, 0, 1, 0}, {420, 1, 0, 0}, {415, 1, 0, 0},
	}
	y := []int{0, 0, 1, 1, 1, 1, 2, 2}
	tree := NewDecisionTreeClassifier()
	require.NoError(t, tree.Fit(X, y))
	a := &ModelArtifact{
		Tree:          tree,
		FeatureNames:  []string{"Voltage_mV", "Adulterant_Type_Fe3O4", "Adulterant_Type_Sugar_Syrup", "Adulterant_Type_Water"},
		VoltageColumn: "Voltage_mV",
		Categories:    features.OneHotEncoder{Column: "Adulterant_Type", Categories: []string{"Fe3O4", "Sugar_Syrup", "Water"}},
	}
	require.NoError(t, a.Validate())
	return a
}

func TestPredictor_PredictRowDuringModelSwap(t *testing.T) {
	modelPath, encoderPath := writeArtifacts(t)
	p, err := NewPredictor(modelPath, encoderPath)
	require.NoError(t, err)

	narrow, wide := p.model, syrupArtifact(t)
	labels := p.labels

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			next := narrow
			if i%2 == 0 {
				next = wide
			}
			p.mu.Lock()
			p.model, p.labels = next, labels
			p.mu.Unlock()
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	for i := 0; i < 2000; i++ {
		pred, err := p.PredictRow(468, "Fe3O4")
		require.NoError(t, err, "the row is encoded and classified by the same model")
		require.Equal(t, "Medium", pred.Quality)
	}
}
