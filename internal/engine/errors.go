package engine

import (
	"context"
	"errors"

	"github.com/crimson-sun/attrition/internal/engine/artifacts"
	"github.com/crimson-sun/attrition/internal/engine/classifier"
	"github.com/crimson-sun/attrition/internal/engine/encoder"
)

// Kind classifies a prediction error for callers that map errors to
// responses.
type Kind string

const (
	KindUnavailable    Kind = "unavailable"
	KindInvalidFeature Kind = "invalid_feature"
	KindInference      Kind = "inference"
	KindCanceled       Kind = "canceled"
	KindInternal       Kind = "internal"
)

// KindOf returns the Kind of err.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, artifacts.ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, encoder.ErrInvalidFeatureValue):
		return KindInvalidFeature
	case errors.Is(err, classifier.ErrInference):
		return KindInference
	default:
		return KindInternal
	}
}
