package ml

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sjwhitworth/golearn/evaluation"
)

// Accuracy returns the fraction of positions where yPred equals yTrue, or 0
// for empty input.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	cm := make(evaluation.ConfusionMatrix)
	for i := range yTrue {
		t, p := strconv.Itoa(yTrue[i]), strconv.Itoa(yPred[i])
		if cm[t] == nil {
			cm[t] = make(map[string]int)
		}
		cm[t][p]++
	}
	return orZero(evaluation.GetAccuracy(cm))
}

// ConfusionMatrix counts predictions: rows are true codes, columns are
// predicted codes, both in ascending code order.
type ConfusionMatrix [][]int

// NewConfusionMatrix builds a k x k matrix. Codes must lie in [0, k).
func NewConfusionMatrix(yTrue, yPred []int, k int) (ConfusionMatrix, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("confusion matrix: %d true labels, %d predictions", len(yTrue), len(yPred))
	}
	cm := make(ConfusionMatrix, k)
	for i := range cm {
		cm[i] = make([]int, k)
	}
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			return nil, fmt.Errorf("confusion matrix: label pair (%d, %d) outside [0, %d)", t, p, k)
		}
		cm[t][p]++
	}
	return cm, nil
}

// RowSums returns the number of true instances per class.
func (cm ConfusionMatrix) RowSums() []int {
	out := make([]int, len(cm))
	for i, row := range cm {
		for _, v := range row {
			out[i] += v
		}
	}
	return out
}

// ColSums returns the number of predicted instances per class.
func (cm ConfusionMatrix) ColSums() []int {
	out := make([]int, len(cm))
	for _, row := range cm {
		for j, v := range row {
			out[j] += v
		}
	}
	return out
}

// Total returns the number of counted predictions.
func (cm ConfusionMatrix) Total() int {
	n := 0
	for _, v := range cm.RowSums() {
		n += v
	}
	return n
}

// Correct returns the trace of the matrix.
func (cm ConfusionMatrix) Correct() int {
	n := 0
	for i := range cm {
		n += cm[i][i]
	}
	return n
}

// Labelled converts the matrix to the name-keyed form used by
// golearn/evaluation. names[i] labels code i; every row carries every class.
func (cm ConfusionMatrix) Labelled(names []string) evaluation.ConfusionMatrix {
	out := make(evaluation.ConfusionMatrix, len(cm))
	for i, row := range cm {
		counts := make(map[string]int, len(row))
		for j, v := range row {
			counts[names[j]] = v
		}
		out[names[i]] = counts
	}
	return out
}

// orZero maps the NaN of an undefined ratio to 0.
func orZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ClassMetrics holds precision, recall and F1 for one class or average.
type ClassMetrics struct {
	Name      string  `json:"name"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ClassificationReport summarizes a confusion matrix per class. Classes are
// listed in code order. Undefined ratios (no predictions or no true
// instances of a class) are reported as 0.
type ClassificationReport struct {
	Classes     []ClassMetrics `json:"classes"`
	Accuracy    float64        `json:"accuracy"`
	MacroAvg    ClassMetrics   `json:"macro_avg"`
	WeightedAvg ClassMetrics   `json:"weighted_avg"`
	Total       int            `json:"total"`
}

// NewClassificationReport computes the report. names[i] labels code i.
func NewClassificationReport(cm ConfusionMatrix, names []string) (*ClassificationReport, error) {
	if len(names) != len(cm) {
		return nil, fmt.Errorf("classification report: %d names for %d classes", len(names), len(cm))
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("classification report: duplicate class name %q", name)
		}
		seen[name] = true
	}

	rows := cm.RowSums()
	total := cm.Total()
	r := &ClassificationReport{
		Classes:     make([]ClassMetrics, len(cm)),
		Total:       total,
		MacroAvg:    ClassMetrics{Name: "macro avg", Support: total},
		WeightedAvg: ClassMetrics{Name: "weighted avg", Support: total},
	}

	labelled := cm.Labelled(names)
	if total > 0 {
		r.Accuracy = orZero(evaluation.GetAccuracy(labelled))
	}

	for i, name := range names {
		m := ClassMetrics{
			Name:      name,
			Precision: orZero(evaluation.GetPrecision(name, labelled)),
			Recall:    orZero(evaluation.GetRecall(name, labelled)),
			F1:        orZero(evaluation.GetF1Score(name, labelled)),
			Support:   rows[i],
		}
		r.Classes[i] = m

		r.MacroAvg.Precision += m.Precision
		r.MacroAvg.Recall += m.Recall
		r.MacroAvg.F1 += m.F1
		if total > 0 {
			w := float64(m.Support) / float64(total)
			r.WeightedAvg.Precision += w * m.Precision
			r.WeightedAvg.Recall += w * m.Recall
			r.WeightedAvg.F1 += w * m.F1
		}
	}
	if k := float64(len(cm)); k > 0 {
		r.MacroAvg.Precision /= k
		r.MacroAvg.Recall /= k
		r.MacroAvg.F1 /= k
	}
	return r, nil
}

// String renders the report as a fixed-width text table with two decimals.
func (r *ClassificationReport) String() string {
	width := len("weighted avg")
	for _, c := range r.Classes {
		width = max(width, len(c.Name))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	row := func(m ClassMetrics) {
		fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, m.Name, m.Precision, m.Recall, m.F1, m.Support)
	}
	for _, c := range r.Classes {
		row(c)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Total)
	row(r.MacroAvg)
	row(r.WeightedAvg)
	return b.String()
}
