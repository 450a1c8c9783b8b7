package attrition

import (
	"github.com/crimson-sun/attrition/internal/engine/artifacts"
	"github.com/crimson-sun/attrition/internal/engine/classifier"
	"github.com/crimson-sun/attrition/internal/engine/encoder"
	"github.com/crimson-sun/attrition/internal/model"
)

// Record maps feature names to raw values: strings, numbers, json.Number,
// bools. Categorical features take their display string.
type Record = model.Record

// Result is a single prediction. Probabilities are keyed "0" and "1".
type Result = model.Result

// Schema lists the expected features and the accepted values of each
// categorical feature.
type Schema = model.Schema

// FeatureError names the feature and raw value that failed to encode.
type FeatureError = encoder.FeatureError

// UnknownCategoryPolicy decides what happens to categorical values missing
// from the mapping table.
type UnknownCategoryPolicy = encoder.Policy

const (
	// PolicyDefault encodes unknown categories as 0 and logs a warning.
	PolicyDefault = encoder.PolicyDefault
	// PolicyFail rejects the record with ErrUnknownCategory.
	PolicyFail = encoder.PolicyFail
)

// Errors returned by Predict and Features. Match them with errors.Is.
var (
	ErrUnavailable         = artifacts.ErrUnavailable
	ErrInvalidFeatureValue = encoder.ErrInvalidFeatureValue
	ErrUnknownCategory     = encoder.ErrUnknownCategory
	ErrInference           = classifier.ErrInference
)

// ParsePolicy parses "default" or "fail".
func ParsePolicy(s string) (UnknownCategoryPolicy, bool) {
	return encoder.ParsePolicy(s)
}
