// Package encoder turns a raw employee record into the fixed-order numeric
// vector the attrition classifier was trained on.
package encoder

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/attrition/internal/model"
)

var (
	// ErrInvalidFeatureValue is returned when a feature cannot be coerced to a
	// finite number.
	ErrInvalidFeatureValue = errors.New("invalid feature value")

	// ErrUnknownCategory is returned under PolicyFail for a category missing
	// from its mapping table. It also matches ErrInvalidFeatureValue.
	ErrUnknownCategory = fmt.Errorf("%w: unknown category", ErrInvalidFeatureValue)
)

// FeatureError identifies the feature and raw value that failed to encode.
type FeatureError struct {
	Feature string
	Value   any
	Err     error
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("%v for feature %q: %s", e.Err, e.Feature, describe(e.Value))
}

func (e *FeatureError) Unwrap() error { return e.Err }

// Policy decides what happens to a categorical value with no mapping entry.
type Policy int

const (
	// PolicyDefault substitutes code 0 and reports a warning.
	PolicyDefault Policy = iota
	// PolicyFail rejects the record.
	PolicyFail
)

// ParsePolicy converts "default" or "fail" to a Policy. Unknown strings yield
// PolicyDefault and false.
func ParsePolicy(s string) (Policy, bool) {
	switch strings.ToLower(s) {
	case "", "default":
		return PolicyDefault, true
	case "fail":
		return PolicyFail, true
	default:
		return PolicyDefault, false
	}
}

func (p Policy) String() string {
	if p == PolicyFail {
		return "fail"
	}
	return "default"
}

// Encoder encodes records. The zero value uses PolicyDefault and logs unknown
// categories through slog.
type Encoder struct {
	Policy Policy

	// OnUnknown, when set, replaces the default warning for unknown categories
	// under PolicyDefault.
	OnUnknown func(feature, value string)
}

// New creates an Encoder with the given policy.
func New(policy Policy) *Encoder {
	return &Encoder{Policy: policy}
}

// Encode builds the feature vector for record. The result has one entry per
// name, in the order of names.
func (e *Encoder) Encode(record model.Record, names model.FeatureNames, mappings model.CategoryMappings) ([]float32, error) {
	vec := make([]float32, 0, len(names))
	for _, name := range names {
		raw := record[name]
		value := raw

		if table, ok := mappings[name]; ok {
			if s, isStr := raw.(string); isStr {
				code, found := lookup(table, s)
				if !found {
					if e.Policy == PolicyFail {
						return nil, &FeatureError{Feature: name, Value: raw, Err: ErrUnknownCategory}
					}
					e.unknown(name, s)
				}
				value = code
			}
		}

		f, ok := toFloat(value)
		// The vector is float32, so anything beyond its range is not finite either.
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxFloat32 {
			return nil, &FeatureError{Feature: name, Value: raw, Err: ErrInvalidFeatureValue}
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}

func (e *Encoder) unknown(feature, value string) {
	if e.OnUnknown != nil {
		e.OnUnknown(feature, value)
		return
	}
	slog.Warn("unknown category, using 0", "feature", feature, "value", value)
}

// lookup finds s in table, falling back to Unicode NFC comparison so that
// composed and decomposed spellings of the same category match. Misses return 0.
// The loader rejects tables with two keys of the same NFC form, so at most one
// key can match.
func lookup(table map[string]int, s string) (int, bool) {
	if code, ok := table[s]; ok {
		return code, true
	}
	want := norm.NFC.String(s)
	if want != s {
		if code, ok := table[want]; ok {
			return code, true
		}
	}
	for k, code := range table {
		if norm.NFC.String(k) == want {
			return code, true
		}
	}
	return 0, false
}

// toFloat coerces a decoded JSON value to float64. Strings must hold a number;
// nil, empty strings, and composite values are rejected.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func describe(v any) string {
	switch val := v.(type) {
	case nil:
		return "missing"
	case string:
		return strconv.Quote(val)
	default:
		return fmt.Sprintf("%v", v)
	}
}
