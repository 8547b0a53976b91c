//go:build onnxruntime

package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/opd-ai/residual/dnn"
)

// Name is the registry identifier of the backend.
const Name = "onnxruntime"

// LibraryEnv names the environment variable holding the shared library path.
const LibraryEnv = "RESIDUAL_ORT_LIBRARY"

var (
	// ErrNotConfigured indicates Infer before SetInputOutput allocated a session.
	ErrNotConfigured = errors.New("onnx session not configured")
	// ErrForeignModel indicates a model that was not loaded by this backend.
	ErrForeignModel = errors.New("model was not loaded by the onnxruntime backend")
)

var (
	envOnce sync.Once
	envErr  error
)

func init() {
	dnn.RegisterBackend(Name, func() dnn.Backend { return &Backend{} })
}

func libraryPath() string {
	if p := os.Getenv(LibraryEnv); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}

func initEnvironment() error {
	envOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		ort.SetSharedLibraryPath(libraryPath())
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("init onnxruntime: %w", err)
		}
	})
	return envErr
}

// Backend loads ONNX graphs through onnxruntime.
type Backend struct {
	// NumThreads bounds intra-op parallelism; 0 leaves the runtime default.
	NumThreads int
}

// Name implements dnn.Backend.
func (b *Backend) Name() string {
	return Name
}

// SetNumThreads sets the intra-op thread count of sessions created afterwards.
func (b *Backend) SetNumThreads(n int) {
	b.NumThreads = n
}

// LoadModel implements dnn.Backend. The session is created at negotiation,
// once the tensor shape is known.
func (b *Backend) LoadModel(path string) (dnn.Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if err := initEnvironment(); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("io info: %w", err)
	}

	m := &Model{path: path, threads: b.NumThreads}
	for _, in := range inputs {
		m.inputs = append(m.inputs, in.Name)
	}
	for _, out := range outputs {
		m.outputs = append(m.outputs, out.Name)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Backend.LoadModel",
		"model":    path,
		"inputs":   m.inputs,
		"outputs":  m.outputs,
	}).Debug("Read onnx model io info")

	return m, nil
}

// FreeModel implements dnn.Backend.
func (b *Backend) FreeModel(m dnn.Model) error {
	model, ok := m.(*Model)
	if !ok {
		return ErrForeignModel
	}
	return model.destroy()
}

// Model is an onnxruntime session with preallocated input and output tensors.
type Model struct {
	path    string
	threads int
	inputs  []string
	outputs []string

	desc    dnn.TensorDesc
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// SetInputOutput implements dnn.Model.
func (m *Model) SetInputOutput(desc dnn.TensorDesc, inputName string, outputNames []string) error {
	if !slices.Contains(m.inputs, inputName) {
		return fmt.Errorf("model has no input %q (inputs: %v)", inputName, m.inputs)
	}
	if len(outputNames) != 1 || !slices.Contains(m.outputs, outputNames[0]) {
		return fmt.Errorf("model outputs %v do not match %v", m.outputs, outputNames)
	}

	shape := ort.NewShape(1, int64(desc.Channels), int64(desc.Height), int64(desc.Width))
	input, err := ort.NewEmptyTensor[float32](shape)
	if err != nil {
		return fmt.Errorf("input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](shape)
	if err != nil {
		_ = input.Destroy()
		return fmt.Errorf("output tensor: %w", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return fmt.Errorf("session opts: %w", err)
	}
	defer opts.Destroy()
	if m.threads > 0 {
		_ = opts.SetIntraOpNumThreads(m.threads)
	}

	session, err := ort.NewAdvancedSession(m.path,
		[]string{inputName}, outputNames,
		[]ort.Value{input}, []ort.Value{output}, opts)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return fmt.Errorf("create session: %w", err)
	}

	m.desc = desc
	m.session = session
	m.input = input
	m.output = output
	return nil
}

// Infer implements dnn.Model. The context is checked before the run; an
// in-flight session run cannot be interrupted.
func (m *Model) Infer(ctx context.Context, in *dnn.Tensor) ([]*dnn.Tensor, error) {
	if m.session == nil {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	copy(m.input.GetData(), in.Data)
	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	out := dnn.NewTensor(dnn.TensorDesc{
		DataType: in.Desc.DataType,
		Width:    m.desc.Width,
		Height:   m.desc.Height,
		Channels: m.desc.Channels,
	})
	copy(out.Data, m.output.GetData())
	return []*dnn.Tensor{out}, nil
}

func (m *Model) destroy() error {
	var errs []error
	if m.session != nil {
		errs = append(errs, m.session.Destroy())
		m.session = nil
	}
	if m.input != nil {
		errs = append(errs, m.input.Destroy())
		m.input = nil
	}
	if m.output != nil {
		errs = append(errs, m.output.Destroy())
		m.output = nil
	}
	return errors.Join(errs...)
}
