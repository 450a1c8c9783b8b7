package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the prediction pipeline. A nil *Metrics
// records nothing.
type Metrics struct {
	// Predictions by predicted class ("0", "1")
	Predictions *prometheus.CounterVec

	// Failed predictions by error kind
	Failures *prometheus.CounterVec

	// Categorical values that fell back to code 0, by feature
	UnknownCategories *prometheus.CounterVec

	// End-to-end prediction latency, including a cold artifact load
	PredictLatency prometheus.Histogram

	// Artifact load attempts by result ("ok", "error")
	ArtifactLoads *prometheus.CounterVec

	ArtifactLoadLatency prometheus.Histogram
}

// New creates and registers all metrics on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Predictions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attrition_predictions_total",
			Help: "Total successful predictions by predicted class",
		}, []string{"prediction"}),

		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attrition_prediction_failures_total",
			Help: "Total failed predictions by error kind",
		}, []string{"kind"}), // kind: "unavailable", "invalid_feature", "inference", "canceled"

		UnknownCategories: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attrition_unknown_categories_total",
			Help: "Categorical values not found in the mapping table, encoded as 0",
		}, []string{"feature"}),

		PredictLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "attrition_predict_duration_seconds",
			Help:    "Duration of a full prediction: load, encode, infer, shape",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 5},
		}),

		ArtifactLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attrition_artifact_loads_total",
			Help: "Artifact load attempts by result",
		}, []string{"result"}),

		ArtifactLoadLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "attrition_artifact_load_duration_seconds",
			Help:    "Duration of reading and initializing the model artifacts",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementPrediction records a successful prediction.
func (m *Metrics) IncrementPrediction(prediction string) {
	if m != nil {
		m.Predictions.WithLabelValues(prediction).Inc()
	}
}

// IncrementFailure records a failed prediction.
func (m *Metrics) IncrementFailure(kind string) {
	if m != nil {
		m.Failures.WithLabelValues(kind).Inc()
	}
}

// IncrementUnknownCategory records a defaulted categorical value.
func (m *Metrics) IncrementUnknownCategory(feature string) {
	if m != nil {
		m.UnknownCategories.WithLabelValues(feature).Inc()
	}
}

// ObservePredictLatency records the total prediction duration.
func (m *Metrics) ObservePredictLatency(d time.Duration) {
	if m != nil {
		m.PredictLatency.Observe(d.Seconds())
	}
}

// ObserveArtifactLoad records one artifact load attempt.
func (m *Metrics) ObserveArtifactLoad(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ArtifactLoads.WithLabelValues(result).Inc()
	m.ArtifactLoadLatency.Observe(d.Seconds())
}
