package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementPrediction("1")
		m.IncrementFailure("inference")
		m.IncrementUnknownCategory("Department")
		m.ObservePredictLatency(time.Millisecond)
		m.ObserveArtifactLoad(time.Second, nil)
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementPrediction("1")
	m.IncrementPrediction("1")
	m.IncrementPrediction("0")
	m.IncrementFailure("invalid_feature")
	m.IncrementUnknownCategory("Department")
	m.ObserveArtifactLoad(time.Second, nil)
	m.ObserveArtifactLoad(time.Second, errors.New("missing"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predictions.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("invalid_feature")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnknownCategories.WithLabelValues("Department")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArtifactLoads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArtifactLoads.WithLabelValues("error")))
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide when registered on distinct registries.
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
