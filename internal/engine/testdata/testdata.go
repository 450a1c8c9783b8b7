// Package testdata embeds a small, consistent artifact set (feature list,
// category mappings, and a sample employee record) shared by engine tests.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/crimson-sun/attrition/internal/model"
)

//go:embed feature_names.json label_mappings.json sample_record.json
var files embed.FS

// File names inside FS.
const (
	FeaturesFile = "feature_names.json"
	MappingsFile = "label_mappings.json"
	RecordFile   = "sample_record.json"
)

// FS returns the embedded fixture files.
func FS() embed.FS { return files }

// FeatureNames parses feature_names.json.
func FeatureNames() (model.FeatureNames, error) {
	var names model.FeatureNames
	if err := decode(FeaturesFile, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Mappings parses label_mappings.json.
func Mappings() (model.CategoryMappings, error) {
	var m model.CategoryMappings
	if err := decode(MappingsFile, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SampleRecord returns a fresh copy of a record with every feature present and
// every category known.
func SampleRecord() (model.Record, error) {
	var r model.Record
	if err := decode(RecordFile, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// SampleVector is the encoding of SampleRecord under the embedded mappings.
var SampleVector = []float32{
	30, 2, 1102, 2, 1, 2, 1, 2, 0, 94, 3, 2, 7, 4, 2,
	5993, 19479, 8, 1, 11, 3, 1, 0, 8, 0, 1, 6, 4, 5,
}

func decode(name string, dest any) error {
	data, err := files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}
