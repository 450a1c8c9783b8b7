package model

// Record is a single employee attribute set submitted for prediction, keyed by
// feature name. Values are strings (categories), numbers, json.Number, bools,
// or nil.
type Record map[string]any

// FeatureNames is the ordered list of columns the classifier was trained on.
// Position, not name, is what the classifier sees.
type FeatureNames []string

// Index returns the position of name in the list, or -1.
func (f FeatureNames) Index(name string) int {
	for i, n := range f {
		if n == name {
			return i
		}
	}
	return -1
}

// CategoryMappings maps a categorical feature name to its category → code table.
type CategoryMappings map[string]map[string]int

// IsCategorical reports whether name has a category table.
func (m CategoryMappings) IsCategorical(name string) bool {
	_, ok := m[name]
	return ok
}
