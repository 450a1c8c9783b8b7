package engine

import (
	"github.com/crimson-sun/attrition/internal/engine/classifier"
	"github.com/crimson-sun/attrition/internal/model"
)

// shape maps raw classifier output to the public result. Probabilities are
// passed through unchecked.
func shape(out classifier.Output) model.Result {
	return model.Result{
		Prediction: int(out.Label),
		Probabilities: map[string]float64{
			"0": float64(out.Probabilities[0]),
			"1": float64(out.Probabilities[1]),
		},
	}
}
