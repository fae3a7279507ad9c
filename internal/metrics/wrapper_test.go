package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_Predictions(t *testing.T) {
	metrics := New()
	wrapper := NewWrapper(metrics)

	wrapper.PredictionsInc("Good")
	wrapper.PredictionsInc("Good")
	wrapper.PredictionsInc("Poor")
	wrapper.PredictionFailuresInc()
	wrapper.PredictionLatencyObserve(0.0002)

	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("Good")); v != 2 {
		t.Errorf("Expected 2 Good predictions, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("Poor")); v != 1 {
		t.Errorf("Expected 1 Poor prediction, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.PredictionFailures); v != 1 {
		t.Errorf("Expected 1 failure, got %f", v)
	}
	if n := testutil.CollectAndCount(metrics.PredictionLatency); n != 1 {
		t.Errorf("Expected latency histogram to be collected once, got %d", n)
	}
}

func TestMetricsWrapper_StageTimer(t *testing.T) {
	metrics := New()
	wrapper := NewWrapper(metrics)

	stop := wrapper.StageTimer("fit")
	stop()
	wrapper.StageTimer("split")()

	if n := testutil.CollectAndCount(metrics.StageDuration); n != 2 {
		t.Errorf("Expected 2 stage series, got %d", n)
	}
}

func TestMetrics_SetClassScores(t *testing.T) {
	metrics := New()
	metrics.SetClassScores("Medium", 0.5, 0.25, 1.0/3)

	if v := testutil.ToFloat64(metrics.ClassScore.WithLabelValues("Medium", "recall")); v != 0.25 {
		t.Errorf("Expected recall 0.25, got %f", v)
	}
	if n := testutil.CollectAndCount(metrics.ClassScore); n != 3 {
		t.Errorf("Expected 3 class score series, got %d", n)
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	metrics := New()
	metrics.Accuracy.Set(0.875)
	metrics.DatasetRows.WithLabelValues("train").Set(21)

	path := filepath.Join(t.TempDir(), "honeygrader.prom")
	if err := metrics.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"honeygrader_test_accuracy 0.875",
		`honeygrader_dataset_rows{split="train"} 21`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}

	if err := metrics.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestMetrics_Handler(t *testing.T) {
	metrics := New()
	metrics.RunsTotal.Inc()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "honeygrader_runs_total 1") {
		t.Errorf("metrics output missing runs counter:\n%s", rec.Body.String())
	}
}

func TestMetricsWrapper_ConcurrentAccess(t *testing.T) {
	metrics := New()
	wrapper := NewWrapper(metrics)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				wrapper.PredictionsInc("Medium")
				wrapper.PredictionLatencyObserve(0.001)
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("Medium")); v != 1000 {
		t.Errorf("Expected 1000 predictions after concurrent access, got %f", v)
	}
}

func TestMetricsWrapper_NilGuard(t *testing.T) {
	wrapper := &MetricsWrapper{m: nil}

	// NewWrapper never produces a nil Metrics.
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when accessing nil metrics")
		}
	}()

	wrapper.PredictionFailuresInc()
}

func BenchmarkMetricsWrapper_PredictionsInc(b *testing.B) {
	wrapper := NewWrapper(New())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.PredictionsInc("Good")
	}
}
