package classifier

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig configures the onnxruntime predictor.
type ONNXConfig struct {
	ModelPath   string
	LibraryPath string
	InputName   string
	OutputName  string
	NumClasses  int
	ImageSize   int
}

var ortInitMu sync.Mutex

// ONNXPredictor runs an exported image model through onnxruntime. It uses a
// dynamic session with per-call tensors, so concurrent Predict calls do not
// share buffers.
type ONNXPredictor struct {
	cfg     ONNXConfig
	session *ort.DynamicAdvancedSession
	modelID string
}

// NewONNXPredictor initializes the onnxruntime environment (once per process)
// and loads the model.
func NewONNXPredictor(cfg ONNXConfig) (*ONNXPredictor, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("onnx model path is required")
	}
	if cfg.NumClasses <= 0 {
		return nil, errors.New("onnx predictor needs the number of classes")
	}
	if cfg.ImageSize <= 0 {
		cfg.ImageSize = DefaultImageSize
	}
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output"
	}

	if err := initORT(cfg.LibraryPath); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXPredictor{
		cfg:     cfg,
		session: session,
		modelID: filepath.Base(cfg.ModelPath),
	}, nil
}

func initORT(libraryPath string) error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// Predict runs one NHWC image through the model.
func (p *ONNXPredictor) Predict(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := int64(p.cfg.ImageSize)
	if int64(len(input)) != size*size*3 {
		return nil, &InvalidImageError{Err: fmt.Errorf("tensor has %d values, want %d", len(input), size*size*3)}
	}

	in, err := ort.NewTensor(ort.NewShape(1, size, size, 3), input)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(p.cfg.NumClasses)))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := p.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, &UnavailableError{Err: fmt.Errorf("onnx run: %w", err)}
	}

	// The tensor memory is released on Destroy; copy before returning.
	return append([]float32(nil), out.GetData()...), nil
}

func (p *ONNXPredictor) ModelID() string { return p.modelID }

// Close releases the session. The shared onnxruntime environment stays up for
// the life of the process.
func (p *ONNXPredictor) Close() error {
	if p == nil || p.session == nil {
		return nil
	}
	err := p.session.Destroy()
	p.session = nil
	return err
}
