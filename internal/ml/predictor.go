package ml

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"honey-grader/internal/features"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	PredictionsInc(quality string)
	PredictionFailuresInc()
	PredictionLatencyObserve(float64)
}

// Predictor serves predictions from a persisted model and label encoder.
// It is safe for concurrent use; Reload swaps both artifacts atomically.
type Predictor struct {
	mu          sync.RWMutex
	model       *ModelArtifact
	labels      *features.LabelEncoder
	modelPath   string
	encoderPath string
	loadedAt    time.Time
	metrics     MetricsInterface
}

// ClassProbability is the predicted probability of one quality class.
type ClassProbability struct {
	Quality     string  `json:"quality"`
	Probability float64 `json:"probability"`
}

// Prediction is the result for one sample.
type Prediction struct {
	Quality       string             `json:"quality"`
	Code          int                `json:"code"`
	Probabilities []ClassProbability `json:"probabilities"`
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	ModelPath    string    `json:"model_path"`
	EncoderPath  string    `json:"encoder_path"`
	LoadedAt     time.Time `json:"loaded_at"`
	FeatureNames []string  `json:"feature_names"`
	Importances  []float64 `json:"feature_importances"`
	Classes      []string  `json:"classes"`
	Depth        int       `json:"depth"`
	Leaves       int       `json:"leaves"`
	Criterion    string    `json:"criterion"`
}

func NewPredictor(modelPath, encoderPath string) (*Predictor, error) {
	return NewPredictorWithMetrics(modelPath, encoderPath, nil)
}

func NewPredictorWithMetrics(modelPath, encoderPath string, metrics MetricsInterface) (*Predictor, error) {
	p := &Predictor{
		modelPath:   modelPath,
		encoderPath: encoderPath,
		metrics:     metrics,
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload reads both artifacts from disk and replaces the loaded pair only if
// they are consistent with each other.
func (p *Predictor) Reload() error {
	model, err := LoadModel(p.modelPath)
	if err != nil {
		return err
	}
	labels, err := LoadLabelEncoder(p.encoderPath)
	if err != nil {
		return err
	}
	for _, c := range model.Tree.Classes {
		if c < 0 || c >= len(labels.Classes) {
			return fmt.Errorf("%w: model class code %d not in encoder classes %v", ErrFeatureMismatch, c, labels.Classes)
		}
	}

	p.mu.Lock()
	p.model = model
	p.labels = labels
	p.loadedAt = time.Now()
	p.mu.Unlock()

	log.Info().
		Str("model", p.modelPath).
		Str("encoder", p.encoderPath).
		Strs("features", model.FeatureNames).
		Strs("classes", labels.Classes).
		Msg("Model loaded")
	return nil
}

// PredictRow encodes a raw reading with the persisted categories and
// classifies it.
func (p *Predictor) PredictRow(voltage float64, adulterant string) (*Prediction, error) {
	model, labels := p.snapshot()

	x, err := features.Row(&model.Categories, voltage, adulterant)
	if err != nil {
		p.fail()
		return nil, err
	}
	return p.predict(model, labels, x)
}

// PredictVector classifies an already encoded vector. names must equal the
// feature names the model was fitted on, in the same order.
func (p *Predictor) PredictVector(names []string, x []float64) (*Prediction, error) {
	model, labels := p.snapshot()

	if !slices.Equal(names, model.FeatureNames) {
		p.fail()
		return nil, fmt.Errorf("%w: got %v, model expects %v", ErrFeatureMismatch, names, model.FeatureNames)
	}
	return p.predict(model, labels, x)
}

// snapshot returns the model and encoder loaded together by the last Reload.
func (p *Predictor) snapshot() (*ModelArtifact, *features.LabelEncoder) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model, p.labels
}

func (p *Predictor) predict(model *ModelArtifact, labels *features.LabelEncoder, x []float64) (*Prediction, error) {
	start := time.Now()

	probas, err := model.Tree.PredictProba([][]float64{x})
	if err != nil {
		p.fail()
		return nil, err
	}

	best := 0
	out := &Prediction{Probabilities: make([]ClassProbability, len(model.Tree.Classes))}
	for i, code := range model.Tree.Classes {
		out.Probabilities[i] = ClassProbability{Quality: labels.Classes[code], Probability: probas[0][i]}
		if probas[0][i] > probas[0][best] {
			best = i
		}
	}
	out.Code = model.Tree.Classes[best]
	out.Quality = labels.Classes[out.Code]

	if p.metrics != nil {
		p.metrics.PredictionsInc(out.Quality)
		p.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
	}
	return out, nil
}

func (p *Predictor) fail() {
	if p.metrics != nil {
		p.metrics.PredictionFailuresInc()
	}
}

// Info describes the currently loaded model.
func (p *Predictor) Info() ModelInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	imp, _ := p.model.Tree.FeatureImportances()
	return ModelInfo{
		ModelPath:    p.modelPath,
		EncoderPath:  p.encoderPath,
		LoadedAt:     p.loadedAt,
		FeatureNames: p.model.FeatureNames,
		Importances:  imp,
		Classes:      p.labels.Classes,
		Depth:        p.model.Tree.Depth(),
		Leaves:       p.model.Tree.LeafCount(),
		Criterion:    p.model.Tree.Criterion,
	}
}
