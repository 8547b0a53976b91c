package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/residual/frame"
	"github.com/opd-ai/residual/stage"
)

var allEnvVars = []string{EnvBackend, EnvModel, EnvMode, EnvInferTimeout, EnvSeed, EnvUseSimulation}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestNewStageFactory_Defaults(t *testing.T) {
	clearEnv(t)

	config := NewStageFactory().GetCurrentConfig()
	assert.Equal(t, stage.DefaultBackend, config.Stage.Backend)
	assert.Equal(t, stage.ModeDNN, config.Stage.Mode)
	assert.Empty(t, config.Stage.Model)
	assert.Zero(t, config.Stage.InferTimeout)
	assert.Zero(t, config.Stage.Seed)
	assert.False(t, config.UseSimulation)
}

func TestEnvironmentVariableParsing(t *testing.T) {
	tests := []struct {
		name      string
		envKey    string
		envValue  string
		checkFunc func(*Config) bool
	}{
		{"backend", EnvBackend, "onnxruntime", func(c *Config) bool { return c.Stage.Backend == "onnxruntime" }},
		{"model", EnvModel, "/models/residual.yaml", func(c *Config) bool { return c.Stage.Model == "/models/residual.yaml" }},
		{"mode_random", EnvMode, "random", func(c *Config) bool { return c.Stage.Mode == stage.ModeRandom }},
		{"mode_invalid", EnvMode, "blur", func(c *Config) bool { return c.Stage.Mode == stage.ModeDNN }},
		{"timeout", EnvInferTimeout, "250", func(c *Config) bool { return c.Stage.InferTimeout == 250*time.Millisecond }},
		{"timeout_zero", EnvInferTimeout, "0", func(c *Config) bool { return c.Stage.InferTimeout == 0 }},
		{"timeout_at_maximum", EnvInferTimeout, "600000", func(c *Config) bool { return c.Stage.InferTimeout == 10*time.Minute }},
		{"timeout_above_maximum", EnvInferTimeout, "700000", func(c *Config) bool { return c.Stage.InferTimeout == 0 }},
		{"timeout_negative", EnvInferTimeout, "-5", func(c *Config) bool { return c.Stage.InferTimeout == 0 }},
		{"timeout_not_a_number", EnvInferTimeout, "soon", func(c *Config) bool { return c.Stage.InferTimeout == 0 }},
		{"seed", EnvSeed, "12345", func(c *Config) bool { return c.Stage.Seed == 12345 }},
		{"seed_negative", EnvSeed, "-1", func(c *Config) bool { return c.Stage.Seed == 0 }},
		{"simulation_true", EnvUseSimulation, "true", func(c *Config) bool { return c.UseSimulation }},
		{"simulation_invalid", EnvUseSimulation, "maybe", func(c *Config) bool { return !c.UseSimulation }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.envKey, tt.envValue)

			config := NewStageFactory().GetCurrentConfig()
			assert.True(t, tt.checkFunc(config), "%s=%q produced %+v", tt.envKey, tt.envValue, config)
		})
	}
}

func TestCreateStage_Simulation(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvUseSimulation, "true")

	var pushed []*frame.Frame
	sink := stage.SinkFunc(func(f *frame.Frame) error {
		pushed = append(pushed, f)
		return nil
	})

	st, err := NewStageFactory().CreateStage(sink)
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, SimulatedModel, st.Config().Model)
	require.NoError(t, st.FilterFrame(context.Background(), frame.New(frame.YUV420P, 4, 4)))
	assert.Len(t, pushed, 1)
}

func TestCreateStage_RealBackendNeedsModel(t *testing.T) {
	clearEnv(t)

	_, err := NewStageFactory().CreateStage(stage.SinkFunc(func(*frame.Frame) error { return nil }))
	assert.ErrorIs(t, err, stage.ErrConfiguration)
}

func TestCreateStage_UnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBackend, "no-such-backend")
	t.Setenv(EnvModel, "model")

	_, err := NewStageFactory().CreateStage(stage.SinkFunc(func(*frame.Frame) error { return nil }))
	assert.ErrorIs(t, err, stage.ErrBackendNotFound)
}

func TestCreateSimulationForTesting(t *testing.T) {
	clearEnv(t)

	var pushed []*frame.Frame
	sink := stage.SinkFunc(func(f *frame.Frame) error {
		pushed = append(pushed, f)
		return nil
	})

	st, backend, err := NewStageFactory().CreateSimulationForTesting(sink,
		WithFailingInferCalls(2), WithResidual(1.0/255.0), WithInferDelay(time.Millisecond))
	require.NoError(t, err)
	defer st.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, st.FilterFrame(context.Background(), frame.New(frame.YUV444P, 4, 4)))
	}
	assert.Len(t, pushed, 3)
	assert.Equal(t, byte(1), pushed[0].Data[0][0])
	assert.Equal(t, byte(0), pushed[1].Data[0][0])

	log := backend.GetInferenceLog()
	require.Len(t, log, 3)
	assert.False(t, log[1].Success)
	assert.Len(t, st.Diagnostics(), 1)
}

func TestModeSwitching(t *testing.T) {
	clearEnv(t)
	f := NewStageFactory()

	assert.False(t, f.IsUsingSimulation())
	f.SwitchToSimulation()
	assert.True(t, f.IsUsingSimulation())
	f.SwitchToReal()
	assert.False(t, f.IsUsingSimulation())
}

func TestUpdateConfig(t *testing.T) {
	clearEnv(t)
	f := NewStageFactory()

	assert.Error(t, f.UpdateConfig(nil))

	config := f.GetCurrentConfig()
	config.Stage.Model = "other.yaml"
	config.UseSimulation = true
	require.NoError(t, f.UpdateConfig(config))

	// The factory keeps its own copy.
	config.Stage.Model = "mutated.yaml"
	current := f.GetCurrentConfig()
	assert.Equal(t, "other.yaml", current.Stage.Model)
	assert.True(t, current.UseSimulation)
}
