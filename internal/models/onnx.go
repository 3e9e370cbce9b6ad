package models

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXOptions configures the onnxruntime backend.
type ONNXOptions struct {
	// LibraryPath is the onnxruntime shared library. Empty means
	// libonnxruntime.so next to the model file.
	LibraryPath    string
	IntraOpThreads int
	// OutputName is the class-probability output, "probabilities" by default.
	OutputName string
}

// ortEnv guards process-wide runtime initialisation.
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNX runs a binary classifier exported with a [1,N] float input and a
// [1,C] probability output.
type ONNX struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	nFeatures  int64
	nClasses   int64
}

// LoadONNX opens the model at path and checks its input width against featureCount.
func LoadONNX(path string, featureCount int, opts ONNXOptions) (*ONNX, error) {
	libPath := opts.LibraryPath
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(path), "libonnxruntime.so")
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected a single input tensor, got %d", len(inputs))
	}
	in := inputs[0]
	if len(in.Dimensions) != 2 || in.Dimensions[1] != int64(featureCount) {
		return nil, fmt.Errorf("onnx: input %q has shape %v, want [1 %d]", in.Name, in.Dimensions, featureCount)
	}

	outputName := opts.OutputName
	if outputName == "" {
		outputName = "probabilities"
	}
	nClasses := int64(-1)
	for _, out := range outputs {
		if out.Name == outputName && len(out.Dimensions) == 2 {
			nClasses = out.Dimensions[1]
		}
	}
	if nClasses == -1 {
		return nil, fmt.Errorf("onnx: model has no 2D output named %q", outputName)
	}
	if nClasses < 2 {
		// dynamic class axis; binary classifiers export two columns
		nClasses = 2
	}

	sessionOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer sessionOpts.Destroy()
	threads := opts.IntraOpThreads
	if threads <= 0 {
		threads = 1
	}
	if err := sessionOpts.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("onnx: failed to set thread count: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(path, []string{in.Name}, []string{outputName}, sessionOpts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &ONNX{
		session:    session,
		inputName:  in.Name,
		outputName: outputName,
		nFeatures:  int64(featureCount),
		nClasses:   nClasses,
	}, nil
}

// PredictProbability runs one row and returns the class-1 probability.
func (m *ONNX) PredictProbability(ctx context.Context, x []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if int64(len(x)) != m.nFeatures {
		return 0, fmt.Errorf("onnx: got %d inputs, want %d", len(x), m.nFeatures)
	}

	row := make([]float32, len(x))
	for i, v := range x {
		row[i] = float32(v)
	}

	input, err := ort.NewTensor(ort.NewShape(1, m.nFeatures), row)
	if err != nil {
		return 0, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, m.nClasses))
	if err != nil {
		return 0, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	if err := m.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return 0, fmt.Errorf("onnx: inference failed: %w", err)
	}

	probs := output.GetData()
	if len(probs) < 2 {
		return 0, fmt.Errorf("onnx: output has %d classes, want at least 2", len(probs))
	}
	return float64(probs[1]), nil
}

// Close releases the session.
func (m *ONNX) Close() error {
	return m.session.Destroy()
}
