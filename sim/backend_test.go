package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/residual/dnn"
)

var testDesc = dnn.TensorDesc{DataType: dnn.Float32, Width: 4, Height: 4, Channels: 3}

func loadNegotiated(t *testing.T, b *Backend) dnn.Model {
	t.Helper()
	m, err := b.LoadModel("model")
	require.NoError(t, err)
	require.NoError(t, m.SetInputOutput(testDesc, "x", []string{"y"}))
	return m
}

func TestNewBackend(t *testing.T) {
	b := NewBackend(Config{})
	assert.Equal(t, Name, b.Name())
	assert.True(t, b.IsSimulation())
	assert.Empty(t, b.GetInferenceLog())
	assert.Equal(t, Stats{}, b.GetStats())
}

func TestLoadModel(t *testing.T) {
	b := NewBackend(Config{FailLoad: []string{"broken"}})

	_, err := b.LoadModel("broken")
	assert.ErrorIs(t, err, ErrSimulatedLoad)

	m, err := b.LoadModel("fine")
	require.NoError(t, err)
	assert.Equal(t, 1, b.GetStats().LiveModels)

	require.NoError(t, b.FreeModel(m))
	assert.Error(t, b.FreeModel(m))
	assert.Equal(t, Stats{Loads: 1, Frees: 1}, b.GetStats())

	other := NewBackend(Config{})
	m2, err := other.LoadModel("fine")
	require.NoError(t, err)
	assert.Error(t, b.FreeModel(m2))
}

func TestSetInputOutput(t *testing.T) {
	b := NewBackend(Config{RejectChannels: []int{3}})
	m, err := b.LoadModel("model")
	require.NoError(t, err)

	err = m.SetInputOutput(testDesc, "x", []string{"y"})
	assert.ErrorIs(t, err, ErrSimulatedNegotiation)
}

func TestInfer_ScriptedFailures(t *testing.T) {
	b := NewBackend(Config{FailInferCalls: []int{2}, Residual: 0.5})
	m := loadNegotiated(t, b)

	for i := 1; i <= 3; i++ {
		outs, err := m.Infer(context.Background(), dnn.NewTensor(testDesc))
		if i == 2 {
			assert.ErrorIs(t, err, ErrSimulatedInference)
			continue
		}
		require.NoError(t, err)
		require.Len(t, outs, 1)
		assert.Equal(t, testDesc, outs[0].Desc)
		assert.Equal(t, float32(0.5), outs[0].Data[0])
	}

	log := b.GetInferenceLog()
	require.Len(t, log, 3)
	assert.True(t, log[0].Success)
	assert.False(t, log[1].Success)
	assert.Equal(t, 2, log[1].CallNumber)
	assert.True(t, log[2].Success)
	assert.Equal(t, 4, log[2].Width)

	stats := b.GetStats()
	assert.Equal(t, 3, stats.Calls)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 1, stats.Failed)

	b.ClearInferenceLog()
	assert.Empty(t, b.GetInferenceLog())
	assert.Equal(t, 3, b.GetStats().Calls)
}

func TestInfer_DelayHonorsContext(t *testing.T) {
	b := NewBackend(Config{Delay: time.Second})
	m := loadNegotiated(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.Infer(ctx, dnn.NewTensor(testDesc))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestInfer_BeforeNegotiation(t *testing.T) {
	b := NewBackend(Config{})
	m, err := b.LoadModel("model")
	require.NoError(t, err)

	_, err = m.Infer(context.Background(), dnn.NewTensor(testDesc))
	assert.ErrorIs(t, err, dnn.ErrNotNegotiated)
}

func TestRegistered(t *testing.T) {
	b, err := dnn.Resolve(Name)
	require.NoError(t, err)
	assert.Equal(t, Name, b.Name())
}
