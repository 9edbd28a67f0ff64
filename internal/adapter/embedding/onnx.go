package embedding

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var envMu sync.Mutex

// initRuntime initializes the process-wide onnxruntime environment once.
func initRuntime(sharedLibrary string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if sharedLibrary != "" {
		ort.SetSharedLibraryPath(sharedLibrary)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}
	return nil
}

type ONNXOptions struct {
	ModelPath     string
	SharedLibrary string
	InputName     string
	OutputName    string
	Layout        Layout
	Dimension     int
}

// ONNXEmbedder runs an image backbone exported to ONNX.
type ONNXEmbedder struct {
	name      string
	layout    Layout
	dimension int

	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

func NewONNXEmbedder(opts ONNXOptions) (*ONNXEmbedder, error) {
	if opts.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	if err := initRuntime(opts.SharedLibrary); err != nil {
		return nil, err
	}

	inputName, outputName := opts.InputName, opts.OutputName
	if inputName == "" || outputName == "" {
		inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect model: %w", err)
		}
		if len(inputs) != 1 || len(outputs) == 0 {
			return nil, fmt.Errorf("model must have one input and at least one output, has %d and %d", len(inputs), len(outputs))
		}
		if inputName == "" {
			inputName = inputs[0].Name
		}
		if outputName == "" {
			outputName = outputs[0].Name
		}
	}

	session, err := ort.NewDynamicAdvancedSession(opts.ModelPath, []string{inputName}, []string{outputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &ONNXEmbedder{
		name:      strings.TrimSuffix(filepath.Base(opts.ModelPath), filepath.Ext(opts.ModelPath)),
		layout:    opts.Layout,
		dimension: opts.Dimension,
		session:   session,
	}, nil
}

func (e *ONNXEmbedder) Embed(ctx context.Context, img *image.RGBA) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := Preprocess(img, e.layout)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("embedder is closed")
	}

	input, err := ort.NewTensor(ort.NewShape(e.layout.Shape()...), data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	// A nil output lets the runtime allocate a tensor of whatever shape the
	// model declares (e.g. [1,1280] or [1,1,1,1280]).
	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{input}, outputs); err != nil {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
		return nil, fmt.Errorf("run failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}

	features := out.GetData()
	if e.dimension > 0 && len(features) != e.dimension {
		return nil, fmt.Errorf("model produced %d features, want %d", len(features), e.dimension)
	}

	// the tensor memory is freed on Destroy
	return append([]float32(nil), features...), nil
}

func (e *ONNXEmbedder) Dimension() int {
	return e.dimension
}

func (e *ONNXEmbedder) ModelName() string {
	return e.name
}

func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}
