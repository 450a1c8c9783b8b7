package model

// Result is the public outcome of one attrition prediction.
type Result struct {
	Prediction    int                `json:"prediction"`    // 1 = predicted to leave
	Probabilities map[string]float64 `json:"probabilities"` // keyed by class index: "0", "1"
}

// Schema describes the inputs the loaded classifier expects. Categories lists
// the known values of each categorical feature, ordered by code.
type Schema struct {
	Features   []string            `json:"features"`
	Categories map[string][]string `json:"categories"`
	Version    string              `json:"version,omitempty"`
}
