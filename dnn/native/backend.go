package native

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/residual/dnn"
)

// Name is the registry identifier of the native backend.
const Name = "native"

func init() {
	dnn.RegisterBackend(Name, func() dnn.Backend { return NewBackend(0) })
}

// Backend runs YAML-described convolutional networks on the CPU.
type Backend struct {
	numThreads int
}

// NewBackend returns a native backend that splits each layer into at most
// numThreads concurrent bands. Values below 1 select runtime.NumCPU().
func NewBackend(numThreads int) *Backend {
	b := &Backend{}
	b.SetNumThreads(numThreads)
	return b
}

// Name implements dnn.Backend.
func (b *Backend) Name() string {
	return Name
}

// SetNumThreads changes the parallelism of models loaded afterwards.
func (b *Backend) SetNumThreads(n int) {
	if n < 1 {
		n = runtime.NumCPU()
	}
	b.numThreads = n
}

// NumThreads returns the configured parallelism.
func (b *Backend) NumThreads() int {
	return b.numThreads
}

// LoadModel implements dnn.Backend.
func (b *Backend) LoadModel(path string) (dnn.Model, error) {
	spec, err := LoadModelFile(path)
	if err != nil {
		return nil, fmt.Errorf("load native model: %w", err)
	}
	return NewModel(spec, b.numThreads), nil
}

// FreeModel implements dnn.Backend.
func (b *Backend) FreeModel(m dnn.Model) error {
	model, ok := m.(*Model)
	if !ok {
		return ErrForeignModel
	}
	if model.freed {
		return ErrModelFreed
	}
	model.freed = true
	model.layers = nil

	logrus.WithFields(logrus.Fields{
		"function": "Backend.FreeModel",
		"backend":  Name,
	}).Debug("Freed native model")
	return nil
}

// Model is a loaded native network.
type Model struct {
	spec    *ModelSpec
	layers  []*convLayer
	threads int

	desc       dnn.TensorDesc
	negotiated bool
	freed      bool
}

// NewModel prepares spec for execution. spec must already be validated.
func NewModel(spec *ModelSpec, threads int) *Model {
	m := &Model{spec: spec, threads: threads}
	for _, l := range spec.Layers {
		m.layers = append(m.layers, newConvLayer(l))
	}
	return m
}

// SetInputOutput implements dnn.Model.
func (m *Model) SetInputOutput(input dnn.TensorDesc, inputName string, outputNames []string) error {
	if m.freed {
		return ErrModelFreed
	}
	if want := m.spec.Layers[0].InChannels; input.Channels != want {
		return fmt.Errorf("model takes %d channels, got %d", want, input.Channels)
	}
	if inputName != m.spec.Input {
		return fmt.Errorf("model input is %q, got %q", m.spec.Input, inputName)
	}
	if !slices.Equal(outputNames, []string{m.spec.Output}) {
		return fmt.Errorf("model output is %q, got %v", m.spec.Output, outputNames)
	}

	m.desc = input
	m.negotiated = true

	logrus.WithFields(logrus.Fields{
		"function": "Model.SetInputOutput",
		"shape":    input.String(),
		"layers":   len(m.layers),
		"threads":  m.threads,
	}).Debug("Native model configured")
	return nil
}

// Infer implements dnn.Model.
func (m *Model) Infer(ctx context.Context, input *dnn.Tensor) ([]*dnn.Tensor, error) {
	if m.freed {
		return nil, ErrModelFreed
	}
	if !m.negotiated {
		return nil, dnn.ErrNotNegotiated
	}

	w, h := input.Desc.Width, input.Desc.Height
	act := make([]float64, len(input.Data))
	for i, v := range input.Data {
		act[i] = float64(v)
	}

	for i, l := range m.layers {
		next, err := l.forward(ctx, act, w, h, m.threads)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		act = next
	}

	out := dnn.NewTensor(dnn.TensorDesc{
		DataType: input.Desc.DataType,
		Width:    w,
		Height:   h,
		Channels: m.layers[len(m.layers)-1].out,
	})
	for i, v := range act {
		out.Data[i] = float32(v)
	}
	return []*dnn.Tensor{out}, nil
}
