package attrition

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/attrition/internal/engine"
	"github.com/crimson-sun/attrition/internal/engine/artifacts"
	"github.com/crimson-sun/attrition/internal/engine/classifier"
	"github.com/crimson-sun/attrition/internal/engine/encoder"
	"github.com/crimson-sun/attrition/internal/metrics"
)

// Predictor scores employee records against the attrition model.
// Safe for concurrent use.
type Predictor struct {
	engine *engine.Engine
}

// New creates a Predictor. Artifacts are read on the first call that needs
// them unless WithPreload is given.
func New(opts ...Option) (*Predictor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	var m *metrics.Metrics
	if o.registerer != nil {
		m = metrics.New(o.registerer)
	}

	cfg := artifactConfig(o)
	cfg.Open = o.opener
	if cfg.Open == nil {
		cfg.Open = classifier.Opener(classifier.Options{
			LibraryPath:    libraryPath(o),
			IntraOpThreads: o.intraOpThreads,
		})
	}
	cfg.OnLoad = m.ObserveArtifactLoad
	loader := artifacts.New(cfg)

	p := &Predictor{
		engine: engine.New(loader, encoder.New(o.policy), m, o.logger),
	}
	if o.preload {
		if err := p.Warm(context.Background()); err != nil {
			return nil, fmt.Errorf("attrition: %w", err)
		}
	}
	return p, nil
}

// Predict scores a single record.
func (p *Predictor) Predict(ctx context.Context, rec Record) (Result, error) {
	return p.engine.Predict(ctx, rec)
}

// Features returns the feature list and categorical options of the loaded
// model.
func (p *Predictor) Features(ctx context.Context) (Schema, error) {
	return p.engine.Features(ctx)
}

// Warm loads the artifacts now instead of on the first prediction.
func (p *Predictor) Warm(ctx context.Context) error {
	return p.engine.Warm(ctx)
}

// Ready reports whether the artifacts are loaded.
func (p *Predictor) Ready() bool {
	return p.engine.Ready()
}

// Close releases model resources. Must be called when the Predictor is no
// longer needed and no Predict call is running. A closed Predictor returns
// ErrUnavailable.
func (p *Predictor) Close() error {
	return p.engine.Close()
}
