// Package classifiertest provides an in-memory Classifier for tests that
// should not depend on the ONNX runtime.
package classifiertest

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/crimson-sun/attrition/internal/engine/classifier"
)

// Fake is a deterministic Classifier. By default it scores a vector with a
// logistic over the mean feature value and predicts class 1 above 0.5.
type Fake struct {
	Width int64 // reported by InputWidth; 0 reports -1
	Err   error // returned by every Classify call when set

	// Score, when set, replaces the default scoring.
	Score func(features []float32) classifier.Output

	mu     sync.Mutex
	last   []float32
	calls  atomic.Int64
	closed atomic.Bool
}

// Classify implements classifier.Classifier.
func (f *Fake) Classify(ctx context.Context, features []float32) (classifier.Output, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return classifier.Output{}, err
	}
	f.mu.Lock()
	f.last = append(f.last[:0], features...)
	f.mu.Unlock()
	if f.Err != nil {
		return classifier.Output{}, f.Err
	}
	if f.Score != nil {
		return f.Score(features), nil
	}
	return logistic(features), nil
}

// InputWidth implements classifier.Classifier.
func (f *Fake) InputWidth() int64 {
	if f.Width == 0 {
		return -1
	}
	return f.Width
}

// Close implements classifier.Classifier.
func (f *Fake) Close() error {
	f.closed.Store(true)
	return nil
}

// Calls returns the number of Classify calls.
func (f *Fake) Calls() int64 { return f.calls.Load() }

// Closed reports whether Close was called.
func (f *Fake) Closed() bool { return f.closed.Load() }

// Last returns a copy of the most recent vector passed to Classify.
func (f *Fake) Last() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float32(nil), f.last...)
}

func logistic(features []float32) classifier.Output {
	var sum float64
	for _, v := range features {
		sum += float64(v)
	}
	mean := 0.0
	if len(features) > 0 {
		mean = sum / float64(len(features))
	}
	p1 := 1 / (1 + math.Exp(-(mean-1000)/1000))
	out := classifier.Output{Probabilities: []float32{float32(1 - p1), float32(p1)}}
	if p1 > 0.5 {
		out.Label = 1
	}
	return out
}
