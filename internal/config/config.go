package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/crimson-sun/attrition/internal/engine/encoder"
)

// Config holds all service configuration.
type Config struct {
	Server    ServerConfig
	Artifacts ArtifactConfig
	Engine    EngineConfig
	Log       LogConfig
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr           string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// ArtifactConfig locates the model artifacts. File names are relative to Dir.
type ArtifactConfig struct {
	Dir            string
	ModelFile      string
	MappingsFile   string
	FeaturesFile   string
	ManifestFile   string
	VerifyManifest bool
}

// EngineConfig holds inference settings.
type EngineConfig struct {
	LibraryPath     string // onnxruntime shared library
	UnknownCategory string // "default" or "fail"
	IntraOpThreads  int
	Preload         bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	dir := getenv("ATTRITION_ARTIFACT_DIR", "models")
	return Config{
		Server: ServerConfig{
			Addr:           getenv("ATTRITION_ADDR", ":8080"),
			RequestTimeout: getenvDuration("ATTRITION_REQUEST_TIMEOUT", 10*time.Second),
			MaxBodyBytes:   int64(getenvInt("ATTRITION_MAX_BODY_BYTES", 64<<10)),
		},
		Artifacts: ArtifactConfig{
			Dir:            dir,
			ModelFile:      getenv("ATTRITION_MODEL_FILE", "attrition_model.onnx"),
			MappingsFile:   getenv("ATTRITION_MAPPINGS_FILE", "label_mappings.json"),
			FeaturesFile:   getenv("ATTRITION_FEATURES_FILE", "feature_names.json"),
			ManifestFile:   getenv("ATTRITION_MANIFEST_FILE", "manifest.yaml"),
			VerifyManifest: getenvBool("ATTRITION_VERIFY_MANIFEST", false),
		},
		Engine: EngineConfig{
			// The runtime library ships alongside the model files.
			LibraryPath:     getenv("ATTRITION_ORT_LIBRARY", filepath.Join(dir, "libonnxruntime.so")),
			UnknownCategory: getenv("ATTRITION_UNKNOWN_CATEGORY", "default"),
			IntraOpThreads:  getenvInt("ATTRITION_INTRA_OP_THREADS", 1),
			Preload:         getenvBool("ATTRITION_PRELOAD", false),
		},
		Log: LogConfig{
			Level:  getenv("ATTRITION_LOG_LEVEL", "info"),
			Format: getenv("ATTRITION_LOG_FORMAT", "text"),
		},
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("ATTRITION_ADDR must not be empty"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %v", c.Server.RequestTimeout))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max body bytes must be positive, got %d", c.Server.MaxBodyBytes))
	}

	if info, err := os.Stat(c.Artifacts.Dir); err != nil {
		errs = append(errs, fmt.Errorf("artifact dir: %w", err))
	} else if !info.IsDir() {
		errs = append(errs, fmt.Errorf("artifact dir %s is not a directory", c.Artifacts.Dir))
	}
	for _, name := range []string{c.Artifacts.ModelFile, c.Artifacts.MappingsFile, c.Artifacts.FeaturesFile} {
		if name == "" {
			errs = append(errs, errors.New("artifact file names must not be empty"))
			break
		}
	}

	if _, ok := encoder.ParsePolicy(c.Engine.UnknownCategory); !ok {
		errs = append(errs, fmt.Errorf("unknown category policy must be \"default\" or \"fail\", got %q", c.Engine.UnknownCategory))
	}
	if c.Engine.IntraOpThreads < 0 {
		errs = append(errs, fmt.Errorf("intra-op threads must not be negative, got %d", c.Engine.IntraOpThreads))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
