package metrics

import "time"

// MetricsWrapper adapts Metrics to the narrow interfaces used by the
// predictor and the pipeline.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc(quality string) {
	w.m.Predictions.WithLabelValues(quality).Inc()
}

func (w *MetricsWrapper) PredictionFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) PredictionLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

// StageTimer starts timing a pipeline stage; calling the returned func
// records the elapsed time.
func (w *MetricsWrapper) StageTimer(stage string) func() {
	start := time.Now()
	return func() {
		w.m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
