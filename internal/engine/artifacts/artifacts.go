// Package artifacts loads the classifier, category mappings, and feature list
// once per process and shares them read-only with every prediction.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/attrition/internal/engine/classifier"
	"github.com/crimson-sun/attrition/internal/model"
)

// ErrUnavailable is wrapped by every load failure.
var ErrUnavailable = errors.New("resource unavailable")

// Default artifact file names inside the artifact directory.
const (
	DefaultModelFile    = "attrition_model.onnx"
	DefaultMappingsFile = "label_mappings.json"
	DefaultFeaturesFile = "feature_names.json"
	DefaultManifestFile = "manifest.yaml"
)

// OpenFunc builds a classifier from serialized model bytes.
type OpenFunc func(modelData []byte) (classifier.Classifier, error)

// Config locates the artifacts. File names are relative to FS.
type Config struct {
	Dir            string
	FS             fs.FS // defaults to os.DirFS(Dir)
	ModelFile      string
	MappingsFile   string
	FeaturesFile   string
	ManifestFile   string
	VerifyManifest bool
	Open           OpenFunc
	Logger         *slog.Logger

	// OnLoad, when set, is called after every load attempt.
	OnLoad func(d time.Duration, err error)
}

// Bundle is a consistent, fully loaded artifact set. It is immutable.
type Bundle struct {
	Classifier classifier.Classifier
	Features   model.FeatureNames
	Mappings   model.CategoryMappings
	Manifest   *Manifest // nil unless verification is enabled
}

// errClosed is returned by EnsureLoaded after Close.
var errClosed = fmt.Errorf("%w: loader closed", ErrUnavailable)

// Loader lazily loads a Bundle. Concurrent first calls share a single load;
// failures are returned to every waiter and retried on the next call.
type Loader struct {
	cfg    Config
	fsys   fs.FS
	group  singleflight.Group
	bundle atomic.Pointer[Bundle]
	loads  atomic.Int64
	closed atomic.Bool
}

// New creates a Loader. No files are read until EnsureLoaded.
func New(cfg Config) *Loader {
	if cfg.ModelFile == "" {
		cfg.ModelFile = DefaultModelFile
	}
	if cfg.MappingsFile == "" {
		cfg.MappingsFile = DefaultMappingsFile
	}
	if cfg.FeaturesFile == "" {
		cfg.FeaturesFile = DefaultFeaturesFile
	}
	if cfg.ManifestFile == "" {
		cfg.ManifestFile = DefaultManifestFile
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	fsys := cfg.FS
	if fsys == nil {
		dir := cfg.Dir
		if dir == "" {
			dir = "."
		}
		fsys = os.DirFS(dir)
	}
	return &Loader{cfg: cfg, fsys: fsys}
}

// EnsureLoaded returns the loaded bundle, loading it on first use. Callers
// that give up waiting get ctx.Err(); the load itself keeps running.
func (l *Loader) EnsureLoaded(ctx context.Context) (*Bundle, error) {
	if l.closed.Load() {
		return nil, errClosed
	}
	if b := l.bundle.Load(); b != nil {
		return b, nil
	}

	ch := l.group.DoChan("bundle", func() (any, error) {
		if b := l.bundle.Load(); b != nil {
			return b, nil
		}
		start := time.Now()
		b, err := l.load()
		if l.cfg.OnLoad != nil {
			l.cfg.OnLoad(time.Since(start), err)
		}
		if err != nil {
			l.cfg.Logger.Error("artifact load failed", "error", err)
			return nil, err
		}
		l.bundle.Store(b)
		// Close ran during the load: undo the publish unless Close already
		// took the bundle.
		if l.closed.Load() {
			if l.bundle.CompareAndSwap(b, nil) {
				b.Classifier.Close()
			}
			return nil, errClosed
		}
		l.cfg.Logger.Info("artifacts loaded",
			"features", len(b.Features),
			"categorical", len(b.Mappings),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return b, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Bundle), nil
	}
}

// Loaded returns the bundle if it is already loaded.
func (l *Loader) Loaded() (*Bundle, bool) {
	b := l.bundle.Load()
	return b, b != nil
}

// Loads returns how many times the artifacts were actually read.
func (l *Loader) Loads() int64 { return l.loads.Load() }

// Close releases the classifier of a loaded bundle. Later EnsureLoaded calls
// fail with ErrUnavailable; the loader never reloads. Close must only run once
// predictions using the bundle have returned.
func (l *Loader) Close() error {
	l.closed.Store(true)
	b := l.bundle.Swap(nil)
	if b == nil || b.Classifier == nil {
		return nil
	}
	return b.Classifier.Close()
}

// load reads all artifacts. Nothing is published unless every step succeeds.
func (l *Loader) load() (*Bundle, error) {
	l.loads.Add(1)

	featuresData, err := l.read(l.cfg.FeaturesFile)
	if err != nil {
		return nil, err
	}
	var features model.FeatureNames
	if err := json.Unmarshal(featuresData, &features); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrUnavailable, l.cfg.FeaturesFile, err)
	}

	mappingsData, err := l.read(l.cfg.MappingsFile)
	if err != nil {
		return nil, err
	}
	var mappings model.CategoryMappings
	if err := json.Unmarshal(mappingsData, &mappings); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrUnavailable, l.cfg.MappingsFile, err)
	}

	if err := checkConsistent(features, mappings); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	modelData, err := l.read(l.cfg.ModelFile)
	if err != nil {
		return nil, err
	}

	var manifest *Manifest
	if l.cfg.VerifyManifest {
		manifest, err = l.verify(map[string][]byte{
			l.cfg.ModelFile:    modelData,
			l.cfg.MappingsFile: mappingsData,
			l.cfg.FeaturesFile: featuresData,
		})
		if err != nil {
			return nil, err
		}
	}

	if l.cfg.Open == nil {
		return nil, fmt.Errorf("%w: no classifier runtime configured", ErrUnavailable)
	}
	cls, err := l.cfg.Open(modelData)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", ErrUnavailable, l.cfg.ModelFile, err)
	}
	if w := cls.InputWidth(); w > 0 && w != int64(len(features)) {
		cls.Close()
		return nil, fmt.Errorf("%w: %s expects %d features, %s lists %d",
			ErrUnavailable, l.cfg.ModelFile, w, l.cfg.FeaturesFile, len(features))
	}

	return &Bundle{
		Classifier: cls,
		Features:   features,
		Mappings:   mappings,
		Manifest:   manifest,
	}, nil
}

func (l *Loader) read(name string) ([]byte, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnavailable, name, err)
	}
	return data, nil
}

func (l *Loader) verify(files map[string][]byte) (*Manifest, error) {
	data, err := l.read(l.cfg.ManifestFile)
	if err != nil {
		return nil, err
	}
	m, err := parseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	for name, content := range files {
		if err := m.Verify(name, content); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	return m, nil
}

// checkConsistent validates the feature list, that every categorical feature is
// one of its columns, and that no two category keys share an NFC form.
func checkConsistent(features model.FeatureNames, mappings model.CategoryMappings) error {
	if len(features) == 0 {
		return errors.New("feature list is empty")
	}
	seen := make(map[string]bool, len(features))
	for _, f := range features {
		if f == "" {
			return errors.New("feature list contains an empty name")
		}
		if seen[f] {
			return fmt.Errorf("feature %q listed twice", f)
		}
		seen[f] = true
	}
	for name, table := range mappings {
		if !seen[name] {
			return fmt.Errorf("category mapping for %q has no matching feature", name)
		}
		forms := make(map[string]string, len(table))
		for key := range table {
			nfc := norm.NFC.String(key)
			if other, dup := forms[nfc]; dup {
				return fmt.Errorf("category mapping for %q has keys %q and %q with the same normalized form", name, other, key)
			}
			forms[nfc] = key
		}
	}
	return nil
}
