package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"slices"

	"honey-grader/internal/features"

	"github.com/rs/zerolog/log"
)

// ModelArtifact is the persisted form of a fitted classifier. It carries the
// column layout the tree was fitted on so a reloaded model can rebuild
// feature vectors in the same order.
type ModelArtifact struct {
	Tree          *DecisionTreeClassifier
	FeatureNames  []string
	VoltageColumn string
	Categories    features.OneHotEncoder
}

// Validate checks that the feature names are the voltage column followed by
// the indicator columns, matching the tree's width.
func (a *ModelArtifact) Validate() error {
	if a.Tree == nil || a.Tree.Root == nil {
		return ErrNotFitted
	}
	want := append([]string{a.VoltageColumn}, a.Categories.FeatureNames()...)
	if !slices.Equal(want, a.FeatureNames) {
		return fmt.Errorf("%w: stored %v, encoder yields %v", ErrFeatureMismatch, a.FeatureNames, want)
	}
	if len(a.FeatureNames) != a.Tree.NFeatures {
		return fmt.Errorf("%w: %d names for %d fitted features", ErrFeatureMismatch, len(a.FeatureNames), a.Tree.NFeatures)
	}
	return nil
}

// SaveModel writes the artifact to path, replacing any existing file.
func SaveModel(path string, a *ModelArtifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return writeGob(path, a)
}

// LoadModel reads an artifact written by SaveModel.
func LoadModel(path string) (*ModelArtifact, error) {
	var a ModelArtifact
	if err := readGob(path, &a); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &a, nil
}

// SaveLabelEncoder writes the fitted label encoder to path, replacing any
// existing file.
func SaveLabelEncoder(path string, e *features.LabelEncoder) error {
	if len(e.Classes) == 0 {
		return fmt.Errorf("label encoder has no classes")
	}
	return writeGob(path, e)
}

// LoadLabelEncoder reads an encoder written by SaveLabelEncoder.
func LoadLabelEncoder(path string) (*features.LabelEncoder, error) {
	var e features.LabelEncoder
	if err := readGob(path, &e); err != nil {
		return nil, err
	}
	if !slices.IsSorted(e.Classes) {
		return nil, fmt.Errorf("label encoder %s: classes not sorted", path)
	}
	return &e, nil
}

func writeGob(path string, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Debug().Str("file", path).Int("bytes", buf.Len()).Msg("Artifact written")
	return nil
}

func readGob(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
