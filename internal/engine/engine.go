package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/crimson-sun/attrition/internal/engine/artifacts"
	"github.com/crimson-sun/attrition/internal/engine/classifier"
	"github.com/crimson-sun/attrition/internal/engine/encoder"
	"github.com/crimson-sun/attrition/internal/logging"
	"github.com/crimson-sun/attrition/internal/metrics"
	"github.com/crimson-sun/attrition/internal/model"
)

// Engine orchestrates the load → encode → infer → shape pipeline.
type Engine struct {
	loader  *artifacts.Loader
	encoder encoder.Encoder
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Engine. m and logger may be nil.
func New(loader *artifacts.Loader, enc *encoder.Encoder, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if enc == nil {
		enc = encoder.New(encoder.PolicyDefault)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		loader:  loader,
		encoder: *enc,
		metrics: m,
		logger:  logger,
	}
}

// Predict scores a single employee record.
func (e *Engine) Predict(ctx context.Context, rec model.Record) (model.Result, error) {
	start := time.Now()
	res, err := e.predict(ctx, rec)
	e.metrics.ObservePredictLatency(time.Since(start))
	if err != nil {
		e.metrics.IncrementFailure(string(KindOf(err)))
		return model.Result{}, err
	}
	e.metrics.IncrementPrediction(strconv.Itoa(res.Prediction))
	return res, nil
}

func (e *Engine) predict(ctx context.Context, rec model.Record) (model.Result, error) {
	bundle, err := e.loader.EnsureLoaded(ctx)
	if err != nil {
		return model.Result{}, err
	}

	enc := e.encoder
	next := e.encoder.OnUnknown
	enc.OnUnknown = func(feature, value string) {
		e.metrics.IncrementUnknownCategory(feature)
		logging.With(ctx, e.logger).Warn("unknown category, using 0",
			"feature", feature,
			"value", value,
		)
		if next != nil {
			next(feature, value)
		}
	}
	vec, err := enc.Encode(rec, bundle.Features, bundle.Mappings)
	if err != nil {
		return model.Result{}, err
	}

	out, err := bundle.Classifier.Classify(ctx, vec)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, classifier.ErrInference) {
			return model.Result{}, err
		}
		return model.Result{}, fmt.Errorf("%w: %w", classifier.ErrInference, err)
	}
	if err := checkOutput(out); err != nil {
		return model.Result{}, err
	}
	return shape(out), nil
}

// checkOutput enforces the binary-classifier contract for any Classifier.
func checkOutput(out classifier.Output) error {
	if out.Label != 0 && out.Label != 1 {
		return fmt.Errorf("%w: label %d is not a binary class", classifier.ErrInference, out.Label)
	}
	if len(out.Probabilities) != 2 {
		return fmt.Errorf("%w: expected 2 class probabilities, got %d", classifier.ErrInference, len(out.Probabilities))
	}
	return nil
}

// Features describes the loaded feature list and category options, loading
// the artifacts if needed.
func (e *Engine) Features(ctx context.Context) (model.Schema, error) {
	bundle, err := e.loader.EnsureLoaded(ctx)
	if err != nil {
		return model.Schema{}, err
	}
	s := model.Schema{
		Features:   append([]string(nil), bundle.Features...),
		Categories: make(map[string][]string, len(bundle.Mappings)),
	}
	for feature, table := range bundle.Mappings {
		s.Categories[feature] = categoriesByCode(table)
	}
	if bundle.Manifest != nil {
		s.Version = bundle.Manifest.Version
	}
	return s, nil
}

func categoriesByCode(table map[string]int) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if table[names[i]] != table[names[j]] {
			return table[names[i]] < table[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// Warm loads the artifacts ahead of the first prediction.
func (e *Engine) Warm(ctx context.Context) error {
	_, err := e.loader.EnsureLoaded(ctx)
	return err
}

// Ready reports whether the artifacts are loaded.
func (e *Engine) Ready() bool {
	_, ok := e.loader.Loaded()
	return ok
}

// Close releases the classifier. Call it after in-flight predictions have
// returned; later calls fail with artifacts.ErrUnavailable.
func (e *Engine) Close() error {
	return e.loader.Close()
}
