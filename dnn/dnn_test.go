package dnn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel echoes its input, or fails when told to.
type fakeModel struct {
	setCalls  int
	rejectSet error
	inferErr  error
	outputs   func(input *Tensor) []*Tensor
}

func (m *fakeModel) SetInputOutput(input TensorDesc, inputName string, outputNames []string) error {
	m.setCalls++
	return m.rejectSet
}

func (m *fakeModel) Infer(ctx context.Context, input *Tensor) ([]*Tensor, error) {
	if m.inferErr != nil {
		return nil, m.inferErr
	}
	if m.outputs != nil {
		return m.outputs(input), nil
	}
	out := NewTensor(input.Desc)
	copy(out.Data, input.Data)
	return []*Tensor{out}, nil
}

// fakeBackend hands out one fakeModel and counts frees.
type fakeBackend struct {
	model   *fakeModel
	loadErr error
	frees   int
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) LoadModel(path string) (Model, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.model, nil
}

func (b *fakeBackend) FreeModel(model Model) error {
	b.frees++
	return nil
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{model: &fakeModel{}}
}

var testDesc = TensorDesc{DataType: Float32, Width: 4, Height: 4, Channels: 3}

func TestRegistry(t *testing.T) {
	RegisterBackend("registry-test", func() Backend { return newFakeBackend() })
	defer func() {
		registryMu.Lock()
		delete(backends, "registry-test")
		registryMu.Unlock()
	}()

	b, err := Resolve("registry-test")
	require.NoError(t, err)
	assert.Equal(t, "fake", b.Name())
	assert.Contains(t, Backends(), "registry-test")

	_, err = Resolve("no-such-backend")
	assert.ErrorIs(t, err, ErrBackendNotFound)
	assert.Contains(t, err.Error(), "registry-test")

	assert.Panics(t, func() {
		RegisterBackend("registry-test", func() Backend { return newFakeBackend() })
	})
}

func TestLoad(t *testing.T) {
	t.Run("empty_path", func(t *testing.T) {
		_, err := Load(newFakeBackend(), "")
		assert.ErrorIs(t, err, ErrModelLoad)
	})

	t.Run("nil_backend", func(t *testing.T) {
		_, err := Load(nil, "model")
		assert.ErrorIs(t, err, ErrModelLoad)
	})

	t.Run("backend_failure", func(t *testing.T) {
		b := newFakeBackend()
		b.loadErr = errors.New("malformed")
		_, err := Load(b, "model")
		assert.ErrorIs(t, err, ErrModelLoad)
		assert.Contains(t, err.Error(), "malformed")
	})

	t.Run("digest_of_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.bin")
		require.NoError(t, os.WriteFile(path, []byte("weights"), 0o600))

		h, err := Load(newFakeBackend(), path)
		require.NoError(t, err)
		assert.Len(t, h.Digest(), 64)
		assert.Equal(t, path, h.Path())
		assert.Equal(t, "fake", h.BackendName())
	})

	t.Run("no_digest_for_identifier", func(t *testing.T) {
		h, err := Load(newFakeBackend(), "valid-model")
		require.NoError(t, err)
		assert.Empty(t, h.Digest())
	})
}

func TestHandle_NegotiateOnce(t *testing.T) {
	b := newFakeBackend()
	h, err := Load(b, "model")
	require.NoError(t, err)

	_, ok := h.Desc()
	assert.False(t, ok)

	require.NoError(t, h.Negotiate(testDesc, "x", []string{"y"}))
	desc, ok := h.Desc()
	assert.True(t, ok)
	assert.Equal(t, testDesc, desc)

	err = h.Negotiate(testDesc, "x", []string{"y"})
	assert.ErrorIs(t, err, ErrAlreadyNegotiated)
	assert.Equal(t, 1, b.model.setCalls)
}

func TestHandle_NegotiateRejections(t *testing.T) {
	tests := []struct {
		name    string
		desc    TensorDesc
		outputs []string
		reject  error
	}{
		{"four_channels", TensorDesc{Width: 4, Height: 4, Channels: 4}, []string{"y"}, nil},
		{"zero_width", TensorDesc{Width: 0, Height: 4, Channels: 3}, []string{"y"}, nil},
		{"no_outputs", testDesc, nil, nil},
		{"backend_rejects", testDesc, []string{"y"}, errors.New("unsupported shape")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			b.model.rejectSet = tt.reject
			h, err := Load(b, "model")
			require.NoError(t, err)

			err = h.Negotiate(tt.desc, "x", tt.outputs)
			assert.ErrorIs(t, err, ErrShapeNegotiation)
			_, ok := h.Desc()
			assert.False(t, ok)
		})
	}
}

func TestHandle_Infer(t *testing.T) {
	b := newFakeBackend()
	h, err := Load(b, "model")
	require.NoError(t, err)

	input := NewTensor(testDesc)
	input.Data[5] = 0.5

	_, err = h.Infer(context.Background(), input)
	assert.ErrorIs(t, err, ErrNotNegotiated)

	require.NoError(t, h.Negotiate(testDesc, "x", []string{"y"}))

	out, err := h.Infer(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), out.Data[5])

	wrong := NewTensor(TensorDesc{DataType: Float32, Width: 8, Height: 4, Channels: 3})
	_, err = h.Infer(context.Background(), wrong)
	assert.ErrorIs(t, err, ErrInference)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Infer(ctx, input)
	assert.ErrorIs(t, err, ErrInference)
	assert.ErrorIs(t, err, context.Canceled)

	b.model.inferErr = errors.New("kernel crashed")
	_, err = h.Infer(context.Background(), input)
	assert.ErrorIs(t, err, ErrInference)

	b.model.inferErr = nil
	b.model.outputs = func(input *Tensor) []*Tensor {
		return []*Tensor{NewTensor(TensorDesc{Width: 2, Height: 2, Channels: 3})}
	}
	_, err = h.Infer(context.Background(), input)
	assert.ErrorIs(t, err, ErrInference)

	b.model.outputs = func(input *Tensor) []*Tensor { return nil }
	_, err = h.Infer(context.Background(), input)
	assert.ErrorIs(t, err, ErrInference)
}

func TestHandle_ReleaseIdempotent(t *testing.T) {
	b := newFakeBackend()
	h, err := Load(b, "model")
	require.NoError(t, err)

	assert.False(t, h.Released())
	require.NoError(t, h.Release())
	require.NoError(t, h.Release())
	assert.Equal(t, 1, b.frees)
	assert.True(t, h.Released())

	assert.ErrorIs(t, h.Negotiate(testDesc, "x", []string{"y"}), ErrModelReleased)
	_, err = h.Infer(context.Background(), NewTensor(testDesc))
	assert.ErrorIs(t, err, ErrModelReleased)

	var nilHandle *Handle
	assert.NoError(t, nilHandle.Release())
	assert.True(t, nilHandle.Released())
}

func TestTensorAndDataType(t *testing.T) {
	tensor := NewTensor(testDesc)
	assert.Len(t, tensor.Data, 48)
	tensor.Channel(2)[0] = 1
	assert.Equal(t, float32(1), tensor.Data[32])
	assert.NoError(t, tensor.Validate())

	tensor.Data = tensor.Data[:10]
	assert.Error(t, tensor.Validate())

	dt, err := ParseDataType("uint8")
	require.NoError(t, err)
	assert.Equal(t, Uint8, dt)
	assert.Equal(t, float32(1), dt.Scale())
	assert.InDelta(t, 1.0/255.0, Float32.Scale(), 1e-9)
	assert.Equal(t, "float32", Float32.String())

	_, err = ParseDataType("int4")
	assert.Error(t, err)

	assert.Equal(t, "float32[3x4x4]", testDesc.String())
}
