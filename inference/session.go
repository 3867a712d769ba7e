// Package inference - Input preparation and onnxruntime sessions for detection models.
package inference

import (
	"os"
	"runtime"
	"sync"

	"github.com/nvr-ai/roadsigns/models/model"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// LibraryPathEnv overrides the platform default onnxruntime shared library path.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// DefaultIntraOpThreads matches the CPU thread count used when no accelerator is present.
const DefaultIntraOpThreads = 4

// Runner runs one forward pass over a prepared input tensor.
type Runner interface {
	// Run copies input into the model, runs it and returns the output as a
	// [1, NumChannel, NumElements] tensor. Its backing may be reused by the next call.
	Run(input []float32) (tensor.Tensor, error)
	// Shape returns the tensor dimensions of the loaded model.
	Shape() model.Shape
	// Order returns the channel layout the model input expects.
	Order() ChannelOrder
}

// NewSessionArgs represents the arguments for creating a new onnxruntime session.
type NewSessionArgs struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibraryPath is the onnxruntime shared library. Empty uses GetSharedLibPath.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// IntraOpThreads is the thread count inside graph nodes. 0 uses DefaultIntraOpThreads.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// InputWidth and InputHeight replace dynamic (-1) input dimensions.
	InputWidth  int `json:"input_width" yaml:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height"`
	// ChannelOrder is the expected input layout. ChannelOrderAuto takes it from
	// the model; it also settles inputs whose dims fit both layouts.
	ChannelOrder ChannelOrder `json:"channel_order" yaml:"channel_order"`
}

// Session is a model session from the onnxruntime with preallocated tensors.
type Session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	shape   model.Shape
	order   ChannelOrder
}

var initOnce sync.Once
var initErr error

// GetSharedLibPath returns the path to the onnxruntime shared library for the
// current platform, or the value of LibraryPathEnv when set.
func GetSharedLibPath() string {
	if p := os.Getenv(LibraryPathEnv); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}

func initializeEnvironment(libPath string) error {
	initOnce.Do(func() {
		if _, err := os.Stat(libPath); err != nil {
			initErr = errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = errors.Wrap(err, "error initializing ORT environment")
		}
	})
	return initErr
}

// NewSession loads a YOLO-style ONNX model and allocates its tensors.
//
// The model must have one [1, 3, H, W] or [1, H, W, 3] float input and one
// [1, numChannel, numElements] float output. The input layout decides Order();
// args.ChannelOrder must agree with it and picks the layout when the dims fit
// both.
//
// Arguments:
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The session, to be released with Close.
//   - error: An error if the runtime or model cannot be loaded.
func NewSession(args NewSessionArgs) (*Session, error) {
	libPath := args.LibraryPath
	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if err := initializeEnvironment(libPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(args.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model info from %s", args.ModelPath)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, errors.Wrapf(model.ErrInvalidShape,
			"model has %d inputs and %d outputs, want 1 and 1", len(inputs), len(outputs))
	}

	shape, order, err := shapeFromDims(inputs[0].Dimensions, outputs[0].Dimensions, args.InputWidth, args.InputHeight, args.ChannelOrder)
	if err != nil {
		return nil, err
	}

	var inputShape ort.Shape
	if order == ChannelOrderHWC {
		inputShape = ort.NewShape(1, int64(shape.TensorHeight), int64(shape.TensorWidth), 3)
	} else {
		inputShape = ort.NewShape(1, 3, int64(shape.TensorHeight), int64(shape.TensorWidth))
	}
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(shape.NumChannel), int64(shape.NumElements)))
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	threads := args.IntraOpThreads
	if threads == 0 {
		threads = DefaultIntraOpThreads
	}
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "error setting intra-op threads")
	}

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	return &Session{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		shape:   shape,
		order:   order,
	}, nil
}

// shapeFromDims derives the model shape from the declared input and output dimensions.
//
// An input whose axis 1 is 3 is CHW and one whose axis 3 is 3 is HWC. When
// both or neither hold (fully dynamic inputs) want decides, defaulting to CHW.
// A want that contradicts the dims is ErrShapeMismatch.
func shapeFromDims(in, out ort.Shape, width, height int, want ChannelOrder) (model.Shape, ChannelOrder, error) {
	if len(in) != 4 || len(out) != 3 {
		return model.Shape{}, "", errors.Wrapf(model.ErrInvalidShape,
			"input dims %v and output dims %v, want 4 and 3", in, out)
	}

	resolve := func(d int64, fallback int) int {
		if d <= 0 {
			return fallback
		}
		return int(d)
	}

	chw, hwc := in[1] == 3, in[3] == 3
	var order ChannelOrder
	switch {
	case chw && !hwc:
		order = ChannelOrderCHW
	case hwc && !chw:
		order = ChannelOrderHWC
	case chw || (in[1] <= 0 && in[3] <= 0):
		order = want
		if order == ChannelOrderAuto {
			order = ChannelOrderCHW
		}
	default:
		return model.Shape{}, "", errors.Wrapf(model.ErrInvalidShape, "input dims %v have no 3 channel axis", in)
	}
	if want != ChannelOrderAuto && want != order {
		return model.Shape{}, "", errors.Wrapf(model.ErrShapeMismatch,
			"channel order %s does not fit input dims %v", want, in)
	}

	var shape model.Shape
	if order == ChannelOrderHWC {
		shape.TensorHeight = resolve(in[1], height)
		shape.TensorWidth = resolve(in[2], width)
	} else {
		shape.TensorHeight = resolve(in[2], height)
		shape.TensorWidth = resolve(in[3], width)
	}
	shape.NumChannel = int(out[1])
	shape.NumElements = int(out[2])

	if shape.TensorWidth <= 0 || shape.TensorHeight <= 0 || shape.NumChannel <= 4 || shape.NumElements <= 0 {
		return model.Shape{}, "", errors.Wrapf(model.ErrInvalidShape,
			"unusable shape %+v from input %v output %v", shape, in, out)
	}
	return shape, order, nil
}

// Shape returns the tensor dimensions of the loaded model.
func (s *Session) Shape() model.Shape {
	return s.shape
}

// Order returns the input channel layout.
func (s *Session) Order() ChannelOrder {
	return s.order
}

// Run copies input into the session's input tensor and runs the model.
//
// The returned tensor is backed by the session's output buffer and is
// overwritten by the next Run. Callers must not run a Session from two
// goroutines at once.
func (s *Session) Run(input []float32) (tensor.Tensor, error) {
	if s.session == nil {
		return nil, errors.New("session is closed")
	}
	data := s.input.GetData()
	if len(input) != len(data) {
		return nil, errors.Wrapf(model.ErrShapeMismatch, "input has %d floats, model expects %d", len(input), len(data))
	}
	copy(data, input)
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}
	return tensor.New(
		tensor.WithShape(1, s.shape.NumChannel, s.shape.NumElements),
		tensor.WithBacking(s.output.GetData()),
	), nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		if err != nil {
			return errors.Wrap(err, "error destroying ORT session")
		}
	}
	return nil
}
