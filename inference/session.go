package inference

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolov3/models/yolov3"
)

// Runner executes one forward pass over a preallocated input buffer.
type Runner interface {
	// Input returns the NCHW input buffer written before Run.
	Input() []float32
	// Run executes the network.
	Run() error
	// Outputs returns one raw tensor per detection scale, valid until the next Run.
	Outputs() []tensor.Tensor
	// Close releases the runner.
	Close() error
}

// SessionArgs is the arguments for creating a new ONNX Runtime session.
type SessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string `json:"path" yaml:"path" validate:"required"`
	// The name of the image input node.
	InputName string `json:"input_name" yaml:"input_name" validate:"required"`
	// The names of the detection outputs, in scale order.
	OutputNames []string `json:"output_names" yaml:"output_names" validate:"required,min=1,dive,required"`
	// The ONNX Runtime shared library. Empty selects DefaultSharedLibPath.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// The execution provider.
	Provider ProviderConfig `json:"provider" yaml:"provider"`
}

// Session is an ONNX Runtime session with preallocated tensors shaped for one
// detection layer configuration.
type Session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
	views   []tensor.Tensor
}

var _ Runner = (*Session)(nil)

// InputShape returns the (1, 3, H, W) network input shape of cfg.
func InputShape(cfg *yolov3.Config) ort.Shape {
	return ort.NewShape(1, 3, int64(cfg.NetHeight), int64(cfg.NetWidth))
}

// OutputShapes returns the (1, anchors*entries, gridH, gridW) shape of every scale.
func OutputShapes(cfg *yolov3.Config) []ort.Shape {
	shapes := make([]ort.Shape, cfg.Scales())
	for s := range shapes {
		w, h := cfg.GridSize(s)
		shapes[s] = ort.NewShape(1, int64(cfg.Channels(s)), int64(h), int64(w))
	}
	return shapes
}

// NewSession creates an ONNX Runtime session for a detection layer.
//
// Order of operations:
//  1. Environment setup: loads the native library once per process.
//  2. Tensor allocation: one input and one output per scale, shaped from cfg.
//  3. Session options: threading, graph optimization and execution provider.
//  4. Session creation: loads the model and binds the tensors.
//
// Arguments:
//   - args: The model path, node names and provider.
//   - cfg: The layer configuration the outputs are shaped for.
//
// Returns:
//   - *Session: The session. The caller must Close it.
//   - error: An error if any step fails. Partially created resources are released.
func NewSession(args SessionArgs, cfg *yolov3.Config) (*Session, error) {
	if len(args.OutputNames) != cfg.Scales() {
		return nil, errors.Errorf("%d output names for %d detection scales", len(args.OutputNames), cfg.Scales())
	}

	if err := InitializeEnvironment(args.LibraryPath); err != nil {
		return nil, err
	}

	s := &Session{}

	input, err := ort.NewEmptyTensor[float32](InputShape(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	s.input = input

	for _, shape := range OutputShapes(cfg) {
		output, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "error creating output tensor")
		}
		s.outputs = append(s.outputs, output)
	}

	options, err := args.Provider.sessionOptions()
	if err != nil {
		s.Close()
		return nil, err
	}
	defer options.Destroy()

	outputs := make([]ort.ArbitraryTensor, len(s.outputs))
	for i, o := range s.outputs {
		outputs[i] = o
	}

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.InputName},
		args.OutputNames,
		[]ort.ArbitraryTensor{s.input},
		outputs,
		options,
	)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "error creating ORT session")
	}
	s.session = session

	s.views = make([]tensor.Tensor, len(s.outputs))
	for i, o := range s.outputs {
		s.views[i] = wrapTensor(o)
	}

	return s, nil
}

// wrapTensor exposes an ORT tensor's buffer as a gorgonia tensor without copying.
func wrapTensor(t *ort.Tensor[float32]) tensor.Tensor {
	shape := t.GetShape()
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(t.GetData()))
}

// Input implements Runner.
func (s *Session) Input() []float32 {
	return s.input.GetData()
}

// Run implements Runner.
func (s *Session) Run() error {
	if s.session == nil {
		return errors.New("session is closed")
	}
	return errors.Wrap(s.session.Run(), "error running ORT session")
}

// Outputs implements Runner.
func (s *Session) Outputs() []tensor.Tensor {
	return s.views
}

// Close releases the native session and tensors.
func (s *Session) Close() error {
	var first error

	if s.session != nil {
		if err := s.session.Destroy(); err != nil {
			first = errors.Wrap(err, "error destroying ORT session")
		}
		s.session = nil
	}
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	for _, o := range s.outputs {
		o.Destroy()
	}
	s.outputs = nil
	s.views = nil

	return first
}
