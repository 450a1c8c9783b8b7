package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest records which artifact files were exported together. Files maps a
// file name to its hex-encoded SHA-256 digest.
//
//	version: "2024-06-01"
//	files:
//	  attrition_model.onnx: 9f2c...
//	  label_mappings.json: 41aa...
//	  feature_names.json: 07be...
type Manifest struct {
	Version string            `yaml:"version"`
	Files   map[string]string `yaml:"files"`
}

func parseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Files) == 0 {
		return nil, fmt.Errorf("manifest lists no files")
	}
	return &m, nil
}

// Verify checks that data matches the digest recorded for name.
func (m *Manifest) Verify(name string, data []byte) error {
	want, ok := m.Files[name]
	if !ok {
		return fmt.Errorf("manifest has no entry for %s", name)
	}
	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, strings.TrimSpace(want)) {
		return fmt.Errorf("checksum mismatch for %s: manifest %s, file %s", name, want, got)
	}
	return nil
}
