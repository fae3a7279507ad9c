// Package metrics provides Prometheus metrics for the honey grading pipeline.
// Training runs record dataset sizes, stage durations and evaluation scores
// and dump them to a node_exporter textfile; the prediction server exposes
// the same registry over HTTP.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline and the prediction
// server.
type Metrics struct {
	registry *prometheus.Registry

	// Training metrics
	DatasetRows   *prometheus.GaugeVec     // Rows per split ("all", "train", "test")
	StageDuration *prometheus.HistogramVec // Duration of each pipeline stage
	Accuracy      prometheus.Gauge         // Test-set accuracy of the last fit
	MacroF1       prometheus.Gauge         // Macro averaged F1 of the last fit
	ClassScore    *prometheus.GaugeVec     // Per-class precision/recall/f1
	TreeDepth     prometheus.Gauge         // Depth of the fitted tree
	TreeLeaves    prometheus.Gauge         // Leaves of the fitted tree
	ChartsSkipped prometheus.Counter       // Charts skipped for missing columns
	RunsTotal     prometheus.Counter       // Completed training runs

	// Prediction metrics
	Predictions        *prometheus.CounterVec // Predictions by quality
	PredictionFailures prometheus.Counter     // Rejected or failed predictions
	PredictionLatency  prometheus.Histogram   // Prediction latency in seconds
}

// New creates metrics on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates metrics registered on registry (useful for testing).
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		DatasetRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "honeygrader_dataset_rows",
			Help: "Number of rows in the dataset and in each side of the split",
		}, []string{"split"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "honeygrader_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"stage"}),
		Accuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "honeygrader_test_accuracy",
			Help: "Accuracy of the fitted model on the held-out test set",
		}),
		MacroF1: factory.NewGauge(prometheus.GaugeOpts{
			Name: "honeygrader_test_macro_f1",
			Help: "Macro averaged F1 score on the held-out test set",
		}),
		ClassScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "honeygrader_class_score",
			Help: "Per-class precision, recall and f1 on the held-out test set",
		}, []string{"quality", "score"}),
		TreeDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "honeygrader_tree_depth",
			Help: "Depth of the fitted decision tree",
		}),
		TreeLeaves: factory.NewGauge(prometheus.GaugeOpts{
			Name: "honeygrader_tree_leaves",
			Help: "Number of leaves of the fitted decision tree",
		}),
		ChartsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "honeygrader_charts_skipped_total",
			Help: "Total number of charts skipped because columns were missing",
		}),
		RunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "honeygrader_runs_total",
			Help: "Total number of completed training runs",
		}),
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "honeygrader_predictions_total",
			Help: "Total number of predictions by predicted quality",
		}, []string{"quality"}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "honeygrader_prediction_failures_total",
			Help: "Total number of rejected or failed predictions",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "honeygrader_prediction_latency_seconds",
			Help:    "Prediction latency in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteTextfile writes the registry to path in the text format read by the
// node_exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// SetClassScores records precision, recall and f1 for one quality class.
func (m *Metrics) SetClassScores(quality string, precision, recall, f1 float64) {
	m.ClassScore.WithLabelValues(quality, "precision").Set(precision)
	m.ClassScore.WithLabelValues(quality, "recall").Set(recall)
	m.ClassScore.WithLabelValues(quality, "f1").Set(f1)
}
