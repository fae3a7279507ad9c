package ml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []int
		yPred []int
		want  float64
	}{
		{"all correct", []int{0, 1, 2}, []int{0, 1, 2}, 1},
		{"half", []int{0, 1, 0, 1}, []int{0, 0, 0, 0}, 0.5},
		{"none", []int{1, 1}, []int{0, 0}, 0},
		{"empty", nil, nil, 0},
		{"length mismatch", []int{0}, []int{0, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Accuracy(tt.yTrue, tt.yPred), 1e-12)
		})
	}
}

func TestConfusionMatrix_Marginals(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 1, 2, 2}
	yPred := []int{0, 1, 1, 1, 2, 2, 0}

	cm, err := NewConfusionMatrix(yTrue, yPred, 3)
	require.NoError(t, err)

	assert.Equal(t, ConfusionMatrix{
		{1, 1, 0},
		{0, 2, 1},
		{1, 0, 1},
	}, cm)
	assert.Equal(t, []int{2, 3, 2}, cm.RowSums())
	assert.Equal(t, []int{2, 3, 2}, cm.ColSums())
	assert.Equal(t, len(yTrue), cm.Total())
	assert.InDelta(t, Accuracy(yTrue, yPred), float64(cm.Correct())/float64(cm.Total()), 1e-12)
}

func TestConfusionMatrix_Errors(t *testing.T) {
	_, err := NewConfusionMatrix([]int{0}, []int{0, 1}, 2)
	assert.Error(t, err)

	_, err = NewConfusionMatrix([]int{0, 3}, []int{0, 1}, 3)
	assert.Error(t, err)
}

func TestClassificationReport(t *testing.T) {
	cm := ConfusionMatrix{
		{1, 1, 0},
		{0, 2, 1},
		{1, 0, 1},
	}
	r, err := NewClassificationReport(cm, []string{"Good", "Medium", "Poor"})
	require.NoError(t, err)

	require.Len(t, r.Classes, 3)
	good := r.Classes[0]
	assert.Equal(t, "Good", good.Name)
	assert.InDelta(t, 0.5, good.Precision, 1e-12)
	assert.InDelta(t, 0.5, good.Recall, 1e-12)
	assert.InDelta(t, 0.5, good.F1, 1e-12)
	assert.Equal(t, 2, good.Support)

	medium := r.Classes[1]
	assert.InDelta(t, 2.0/3, medium.Precision, 1e-12)
	assert.InDelta(t, 2.0/3, medium.Recall, 1e-12)

	assert.InDelta(t, 4.0/7, r.Accuracy, 1e-12)
	assert.Equal(t, 7, r.Total)
	assert.InDelta(t, (0.5+2.0/3+0.5)/3, r.MacroAvg.Precision, 1e-12)
	assert.InDelta(t, (2*0.5+3*2.0/3+2*0.5)/7, r.WeightedAvg.Recall, 1e-12)
}

func TestClassificationReport_ZeroDivision(t *testing.T) {
	// Class 2 is never predicted and class 1 never occurs.
	cm := ConfusionMatrix{
		{2, 1, 0},
		{0, 0, 0},
		{1, 0, 0},
	}
	r, err := NewClassificationReport(cm, []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, 0.0, r.Classes[1].Precision)
	assert.Equal(t, 0.0, r.Classes[1].Recall)
	assert.Equal(t, 0.0, r.Classes[1].F1)
	assert.Equal(t, 0.0, r.Classes[2].Precision)
	assert.Equal(t, 0.0, r.Classes[2].F1)
	assert.Equal(t, 0, r.Classes[1].Support)

	_, err = NewClassificationReport(cm, []string{"a"})
	assert.Error(t, err)
}

func TestClassificationReport_String(t *testing.T) {
	cm := ConfusionMatrix{{3, 0}, {1, 2}}
	r, err := NewClassificationReport(cm, []string{"Good", "Poor"})
	require.NoError(t, err)

	out := r.String()
	for _, want := range []string{"precision", "recall", "f1-score", "support", "Good", "Poor", "accuracy", "macro avg", "weighted avg", "0.83"} {
		assert.Contains(t, out, want)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 8)
}

func TestConfusionMatrix_Labelled(t *testing.T) {
	cm := ConfusionMatrix{
		{1, 1, 0},
		{0, 2, 1},
		{1, 0, 1},
	}
	labelled := cm.Labelled([]string{"Good", "Medium", "Poor"})

	require.Len(t, labelled, 3)
	assert.Equal(t, map[string]int{"Good": 0, "Medium": 2, "Poor": 1}, labelled["Medium"])
	assert.Equal(t, 0, labelled["Poor"]["Medium"], "every row carries every class")
	assert.Len(t, labelled["Poor"], 3)
}

func TestClassificationReport_DuplicateNames(t *testing.T) {
	_, err := NewClassificationReport(ConfusionMatrix{{1, 0}, {0, 1}}, []string{"Good", "Good"})
	assert.Error(t, err)
}

func TestClassificationReport_EmptyMatrix(t *testing.T) {
	r, err := NewClassificationReport(ConfusionMatrix{{0, 0}, {0, 0}}, []string{"Good", "Poor"})
	require.NoError(t, err)

	assert.Equal(t, 0.0, r.Accuracy)
	for _, c := range r.Classes {
		assert.Equal(t, 0.0, c.Precision)
		assert.Equal(t, 0.0, c.Recall)
		assert.Equal(t, 0.0, c.F1)
	}
}
