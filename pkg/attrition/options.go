package attrition

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crimson-sun/attrition/internal/engine/artifacts"
)

const defaultLibraryName = "libonnxruntime.so"

type options struct {
	artifactDir    string
	modelPath      string
	mappingsPath   string
	featuresPath   string
	manifestPath   string
	libraryPath    string
	intraOpThreads int
	policy         UnknownCategoryPolicy
	verifyManifest bool
	preload        bool
	logger         *slog.Logger
	registerer     prometheus.Registerer

	fsys   fs.FS
	opener artifacts.OpenFunc
}

// Option configures a Predictor.
type Option func(*options)

// WithArtifactDir sets the directory containing the model artifacts.
// Expects: attrition_model.onnx, label_mappings.json, feature_names.json,
// and optionally manifest.yaml.
func WithArtifactDir(dir string) Option {
	return func(o *options) {
		o.artifactDir = dir
	}
}

// WithArtifactPaths sets explicit paths for each artifact file.
// Use this when the files aren't in one directory. A manifest, if any, is
// looked up next to the model unless WithManifestPath is given.
func WithArtifactPaths(model, mappings, features string) Option {
	return func(o *options) {
		o.modelPath = model
		o.mappingsPath = mappings
		o.featuresPath = features
	}
}

// WithManifestPath sets the manifest location used with WithArtifactPaths.
func WithManifestPath(path string) Option {
	return func(o *options) {
		o.manifestPath = path
	}
}

// WithArtifactFS reads the artifacts from fsys using the default file names.
func WithArtifactFS(fsys fs.FS) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

// WithRuntimeLibrary sets the onnxruntime shared library path.
// Default: libonnxruntime.so next to the model.
func WithRuntimeLibrary(path string) Option {
	return func(o *options) {
		o.libraryPath = path
	}
}

// WithIntraOpThreads caps the threads used by one forward pass. Default: 1.
func WithIntraOpThreads(n int) Option {
	return func(o *options) {
		o.intraOpThreads = n
	}
}

// WithUnknownCategoryPolicy sets how unknown categorical values are handled.
// Default: PolicyDefault.
func WithUnknownCategoryPolicy(p UnknownCategoryPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithManifestVerification checks artifact checksums against manifest.yaml
// before the model is opened.
func WithManifestVerification(enabled bool) Option {
	return func(o *options) {
		o.verifyManifest = enabled
	}
}

// WithPreload makes New load the artifacts and fail if they are unusable.
func WithPreload() Option {
	return func(o *options) {
		o.preload = true
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics registers prediction metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// withOpener replaces the ONNX runtime, for tests.
func withOpener(open artifacts.OpenFunc) Option {
	return func(o *options) {
		o.opener = open
	}
}

func defaultOptions() options {
	return options{
		artifactDir:    "models",
		intraOpThreads: 1,
		policy:         PolicyDefault,
	}
}

// artifactConfig resolves the loader configuration. Explicit paths take
// precedence over the artifact directory.
func artifactConfig(o options) artifacts.Config {
	cfg := artifacts.Config{
		Dir:            o.artifactDir,
		FS:             o.fsys,
		VerifyManifest: o.verifyManifest,
		Logger:         o.logger,
	}
	if o.modelPath != "" {
		manifest := o.manifestPath
		if manifest == "" {
			manifest = filepath.Join(filepath.Dir(o.modelPath), artifacts.DefaultManifestFile)
		}
		cfg.FS = pathFS{
			artifacts.DefaultModelFile:    o.modelPath,
			artifacts.DefaultMappingsFile: o.mappingsPath,
			artifacts.DefaultFeaturesFile: o.featuresPath,
			artifacts.DefaultManifestFile: manifest,
		}
	}
	return cfg
}

func libraryPath(o options) string {
	if o.libraryPath != "" {
		return o.libraryPath
	}
	dir := o.artifactDir
	if o.modelPath != "" {
		dir = filepath.Dir(o.modelPath)
	}
	return filepath.Join(dir, defaultLibraryName)
}

// pathFS serves artifact names from explicit filesystem paths.
type pathFS map[string]string

func (p pathFS) Open(name string) (fs.File, error) {
	path, ok := p[name]
	if !ok || path == "" {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return os.Open(path)
}
