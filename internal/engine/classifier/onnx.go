package classifier

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// Options tunes the ONNX session.
type Options struct {
	// LibraryPath is the onnxruntime shared library. Empty uses the
	// platform default search path.
	LibraryPath    string
	IntraOpThreads int
}

// ONNXClassifier wraps a DynamicAdvancedSession for a scikit-learn style
// binary classifier: one float input [batch, N], a label output, and a
// probability output [batch, 2].
type ONNXClassifier struct {
	session   *ort.DynamicAdvancedSession
	inputName string
	labelName string
	probName  string
	width     int64
}

// Opener adapts Open to loaders that expect the Classifier interface.
func Opener(opts Options) func(modelData []byte) (Classifier, error) {
	return func(modelData []byte) (Classifier, error) {
		c, err := Open(modelData, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Open creates a classifier from serialized ONNX model bytes. Tensor names are
// read from the graph, not assumed.
func Open(modelData []byte, opts Options) (*ONNXClassifier, error) {
	if err := initORT(opts.LibraryPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(modelData)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	inputName, width, err := inspectInput(inputs)
	if err != nil {
		return nil, err
	}
	labelName, probName, err := inspectOutputs(outputs)
	if err != nil {
		return nil, err
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer sessOpts.Destroy()
	if opts.IntraOpThreads > 0 {
		if err := sessOpts.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("onnx: set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(
		modelData,
		[]string{inputName},
		[]string{labelName, probName},
		sessOpts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &ONNXClassifier{
		session:   session,
		inputName: inputName,
		labelName: labelName,
		probName:  probName,
		width:     width,
	}, nil
}

// inspectInput validates the model's single float input and returns its name
// and declared feature width (-1 when dynamic).
func inspectInput(inputs []ort.InputOutputInfo) (string, int64, error) {
	if len(inputs) != 1 {
		return "", 0, fmt.Errorf("onnx: expected exactly one input tensor, got %d", len(inputs))
	}
	in := inputs[0]
	if in.OrtValueType != ort.ONNXTypeTensor {
		return "", 0, fmt.Errorf("onnx: input %q is not a tensor", in.Name)
	}
	if in.DataType != ort.TensorElementDataTypeFloat {
		return "", 0, fmt.Errorf("onnx: input %q must be float32, got element type %v", in.Name, in.DataType)
	}
	dims := in.Dimensions
	if len(dims) != 2 {
		return "", 0, fmt.Errorf("onnx: expected 2D input tensor [batch, features], got %v", dims)
	}
	width := dims[1]
	if width <= 0 {
		width = -1
	}
	return in.Name, width, nil
}

// inspectOutputs returns the label and probability output names, in the
// order the graph declares them.
func inspectOutputs(outputs []ort.InputOutputInfo) (string, string, error) {
	if len(outputs) < 2 {
		return "", "", fmt.Errorf("onnx: expected label and probability outputs, got %d output(s)", len(outputs))
	}
	label, prob := outputs[0], outputs[1]
	if label.OrtValueType != ort.ONNXTypeTensor {
		return "", "", fmt.Errorf("onnx: label output %q is not a tensor", label.Name)
	}
	if prob.OrtValueType != ort.ONNXTypeTensor {
		return "", "", fmt.Errorf("onnx: probability output %q is not a tensor; export the model with zipmap disabled", prob.Name)
	}
	return label.Name, prob.Name, nil
}

// InputWidth implements Classifier.
func (c *ONNXClassifier) InputWidth() int64 { return c.width }

// Classify runs one forward pass on a [1, N] batch.
func (c *ONNXClassifier) Classify(ctx context.Context, features []float32) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if c.width > 0 && int64(len(features)) != c.width {
		return Output{}, fmt.Errorf("%w: got %d features, model expects %d", ErrInference, len(features), c.width)
	}

	in, err := ort.NewTensor(ort.NewShape(1, int64(len(features))), features)
	if err != nil {
		return Output{}, runtimeError("create input tensor", err)
	}
	defer in.Destroy()

	// Nil outputs are allocated by the runtime.
	outs := []ort.Value{nil, nil}
	if err := c.session.Run([]ort.Value{in}, outs); err != nil {
		return Output{}, runtimeError("run", err)
	}
	defer func() {
		for _, o := range outs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	label, err := readLabel(outs[0])
	if err != nil {
		return Output{}, err
	}
	probs, err := readProbabilities(outs[1])
	if err != nil {
		return Output{}, err
	}
	return Output{Label: label, Probabilities: probs}, nil
}

// Close releases the ONNX session resources.
func (c *ONNXClassifier) Close() error {
	return c.session.Destroy()
}

// runtimeError wraps an onnxruntime failure, keeping its chain for errors.Is/As.
func runtimeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInference, op, err)
}

func readLabel(v ort.Value) (int64, error) {
	switch t := v.(type) {
	case *ort.Tensor[int64]:
		return labelFrom(t.GetData())
	case *ort.Tensor[int32]:
		return labelFrom(t.GetData())
	case *ort.Tensor[float32]:
		return labelFrom(t.GetData())
	case *ort.Tensor[float64]:
		return labelFrom(t.GetData())
	default:
		return 0, fmt.Errorf("%w: unsupported label output type %T", ErrInference, v)
	}
}

func readProbabilities(v ort.Value) ([]float32, error) {
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		return probabilitiesFrom(t.GetData())
	case *ort.Tensor[float64]:
		return probabilitiesFrom(t.GetData())
	default:
		return nil, fmt.Errorf("%w: unsupported probability output type %T", ErrInference, v)
	}
}

type number interface {
	~int32 | ~int64 | ~float32 | ~float64
}

// labelFrom reads the single-row label and checks it is a binary class.
func labelFrom[T number](data []T) (int64, error) {
	if len(data) != 1 {
		return 0, fmt.Errorf("%w: expected 1 label, got %d", ErrInference, len(data))
	}
	label := int64(data[0])
	if T(label) != data[0] || (label != 0 && label != 1) {
		return 0, fmt.Errorf("%w: label %v is not a binary class", ErrInference, data[0])
	}
	return label, nil
}

// probabilitiesFrom copies the [1, 2] probability row out of runtime memory.
func probabilitiesFrom[T float32 | float64](data []T) ([]float32, error) {
	if len(data) != 2 {
		return nil, fmt.Errorf("%w: expected 2 class probabilities, got %d", ErrInference, len(data))
	}
	return []float32{float32(data[0]), float32(data[1])}, nil
}
