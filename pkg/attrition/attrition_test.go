package attrition

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/crimson-sun/attrition/internal/engine/artifacts"
	"github.com/crimson-sun/attrition/internal/engine/classifier"
	"github.com/crimson-sun/attrition/internal/engine/classifier/classifiertest"
	"github.com/crimson-sun/attrition/internal/engine/testdata"
)

const testArtifactDir = "../../models"

func skipWithoutModel(t *testing.T) {
	t.Helper()
	for _, name := range []string{artifacts.DefaultModelFile, defaultLibraryName} {
		if _, err := os.Stat(filepath.Join(testArtifactDir, name)); os.IsNotExist(err) {
			t.Skipf("%s not available, skipping integration test", name)
		}
	}
}

func fixtureFS(t *testing.T) fstest.MapFS {
	t.Helper()
	src := testdata.FS()
	features, err := src.ReadFile(testdata.FeaturesFile)
	if err != nil {
		t.Fatal(err)
	}
	mappings, err := src.ReadFile(testdata.MappingsFile)
	if err != nil {
		t.Fatal(err)
	}
	return fstest.MapFS{
		artifacts.DefaultFeaturesFile: {Data: features},
		artifacts.DefaultMappingsFile: {Data: mappings},
		artifacts.DefaultModelFile:    {Data: []byte("model")},
	}
}

func newFake(t *testing.T, opts ...Option) (*Predictor, *classifiertest.Fake) {
	t.Helper()
	fake := &classifiertest.Fake{Width: 29}
	base := []Option{
		WithArtifactFS(fixtureFS(t)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		withOpener(func([]byte) (classifier.Classifier, error) { return fake, nil }),
	}
	p, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, fake
}

func sample(t *testing.T) Record {
	t.Helper()
	rec, err := testdata.SampleRecord()
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestNewIsLazy(t *testing.T) {
	p, fake := newFake(t)
	if p.Ready() {
		t.Fatal("Ready() = true before any prediction")
	}
	if fake.Calls() != 0 {
		t.Fatalf("classifier called %d times before Predict", fake.Calls())
	}
}

func TestNewBadPathReturnsErrorWithPreload(t *testing.T) {
	_, err := New(
		WithArtifactDir("/nonexistent/path"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPreload(),
	)
	if err == nil {
		t.Fatal("expected error for bad artifact path, got nil")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBadPathFailsOnFirstPredict(t *testing.T) {
	p, err := New(
		WithArtifactDir("/nonexistent/path"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()

	_, err = p.Predict(context.Background(), sample(t))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Predict() error = %v, want ErrUnavailable", err)
	}
}

func TestPredict(t *testing.T) {
	p, fake := newFake(t, WithPreload())
	if !p.Ready() {
		t.Fatal("Ready() = false after preload")
	}

	res, err := p.Predict(context.Background(), sample(t))
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if res.Prediction != 0 && res.Prediction != 1 {
		t.Errorf("Prediction = %d, want 0 or 1", res.Prediction)
	}
	if len(res.Probabilities) != 2 {
		t.Errorf("Probabilities = %v, want two classes", res.Probabilities)
	}
	if fake.Calls() != 1 {
		t.Errorf("classifier calls = %d, want 1", fake.Calls())
	}
}

func TestPredictUnknownCategoryPolicies(t *testing.T) {
	rec := sample(t)
	rec["Department"] = "Unobtainium Labs"

	lenient, _ := newFake(t)
	if _, err := lenient.Predict(context.Background(), rec); err != nil {
		t.Fatalf("default policy should accept unknown categories, got %v", err)
	}

	strict, _ := newFake(t, WithUnknownCategoryPolicy(PolicyFail))
	_, err := strict.Predict(context.Background(), rec)
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("fail policy error = %v, want ErrUnknownCategory", err)
	}
	var fe *FeatureError
	if !errors.As(err, &fe) || fe.Feature != "Department" {
		t.Fatalf("expected FeatureError for Department, got %v", err)
	}
}

func TestPredictConcurrent(t *testing.T) {
	p, _ := newFake(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Predict(context.Background(), sample(t)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Predict() error: %v", err)
	}
}

func TestFeatures(t *testing.T) {
	p, _ := newFake(t)

	s, err := p.Features(context.Background())
	if err != nil {
		t.Fatalf("Features() error: %v", err)
	}
	if len(s.Features) != 29 {
		t.Errorf("len(Features) = %d, want 29", len(s.Features))
	}
	if got := s.Categories["MaritalStatus"]; len(got) != 3 || got[0] != "Divorced" {
		t.Errorf("MaritalStatus options = %v", got)
	}
}

func TestWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, _ := newFake(t, WithMetrics(reg))

	if _, err := p.Predict(context.Background(), sample(t)); err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	n, err := testutil.GatherAndCount(reg, "attrition_artifact_loads_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("artifact load series = %d, want 1", n)
	}
}

func TestArtifactPaths(t *testing.T) {
	dir := t.TempDir()
	for name, f := range fixtureFS(t) {
		if err := os.WriteFile(filepath.Join(dir, "x-"+name), f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fake := &classifiertest.Fake{Width: 29}
	p, err := New(
		WithArtifactPaths(
			filepath.Join(dir, "x-"+artifacts.DefaultModelFile),
			filepath.Join(dir, "x-"+artifacts.DefaultMappingsFile),
			filepath.Join(dir, "x-"+artifacts.DefaultFeaturesFile),
		),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		withOpener(func([]byte) (classifier.Classifier, error) { return fake, nil }),
		WithPreload(),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()
	if !p.Ready() {
		t.Fatal("expected artifacts loaded from explicit paths")
	}
}

func TestLibraryPathDefaults(t *testing.T) {
	tests := []struct {
		name string
		o    options
		want string
	}{
		{"artifact dir", options{artifactDir: "models"}, filepath.Join("models", "libonnxruntime.so")},
		{"explicit model", options{artifactDir: "models", modelPath: "/opt/m/model.onnx"}, "/opt/m/libonnxruntime.so"},
		{"explicit library", options{artifactDir: "models", libraryPath: "/usr/lib/libort.so"}, "/usr/lib/libort.so"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := libraryPath(tt.o); got != tt.want {
				t.Errorf("libraryPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	if p, ok := ParsePolicy("fail"); !ok || p != PolicyFail {
		t.Errorf("ParsePolicy(fail) = %v, %v", p, ok)
	}
	if _, ok := ParsePolicy("bogus"); ok {
		t.Error("ParsePolicy(bogus) should not be ok")
	}
}

func TestPredictWithModel(t *testing.T) {
	skipWithoutModel(t)

	p, err := New(WithArtifactDir(testArtifactDir), WithPreload())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()

	rec := sample(t)
	first, err := p.Predict(context.Background(), rec)
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	second, err := p.Predict(context.Background(), rec)
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if first.Prediction != second.Prediction || first.Probabilities["1"] != second.Probabilities["1"] {
		t.Errorf("predictions differ for identical input: %+v vs %+v", first, second)
	}
	sum := first.Probabilities["0"] + first.Probabilities["1"]
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("probabilities sum to %f, want ~1", sum)
	}
}
