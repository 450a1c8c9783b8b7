// Package attrition predicts whether an employee is likely to leave, using a
// pre-trained binary classifier exported to ONNX.
//
// Quick start:
//
//	p, err := attrition.New(attrition.WithArtifactDir("models/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	res, err := p.Predict(ctx, attrition.Record{"Age": 30, "Department": "Sales", ...})
//	fmt.Println(res.Prediction, res.Probabilities["1"])
//
// Artifacts are loaded on first use and shared by all callers. The Predictor
// is safe for concurrent use. Create once, reuse across requests.
package attrition
