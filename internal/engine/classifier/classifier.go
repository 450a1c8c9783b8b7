// Package classifier runs the pre-trained attrition model on one encoded
// feature vector at a time.
package classifier

import (
	"context"
	"errors"
)

// ErrInference is wrapped by every failure of the forward pass, including
// outputs that do not have the expected binary-classifier shape.
var ErrInference = errors.New("inference error")

// Output is the raw result of one forward pass.
type Output struct {
	Label         int64     // predicted class, 0 or 1
	Probabilities []float32 // [P(class 0), P(class 1)]
}

// Classifier scores a single feature vector.
type Classifier interface {
	Classify(ctx context.Context, features []float32) (Output, error)
	// InputWidth returns the feature count the model declares, or -1 if the
	// dimension is dynamic.
	InputWidth() int64
	Close() error
}
