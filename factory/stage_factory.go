package factory

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/residual/sim"
	"github.com/opd-ai/residual/stage"
)

// Validation constants for configuration bounds checking.
const (
	// MinInferTimeoutMs is the minimum allowed inference timeout in milliseconds.
	// Zero disables the timeout.
	MinInferTimeoutMs = 0
	// MaxInferTimeoutMs is the maximum allowed inference timeout in milliseconds (10 minutes).
	MaxInferTimeoutMs = 600000
)

// Environment variables read by NewStageFactory.
const (
	EnvBackend       = "RESIDUAL_BACKEND"
	EnvModel         = "RESIDUAL_MODEL"
	EnvMode          = "RESIDUAL_MODE"
	EnvInferTimeout  = "RESIDUAL_INFER_TIMEOUT_MS"
	EnvSeed          = "RESIDUAL_SEED"
	EnvUseSimulation = "RESIDUAL_USE_SIMULATION"
)

// SimulatedModel is the model identifier used when simulation is enabled
// and no model is configured.
const SimulatedModel = "simulated-model"

// Config is the factory's default stage configuration.
type Config struct {
	Stage         stage.Config
	UseSimulation bool
}

// StageFactory creates residual stages based on configuration.
// It is safe for concurrent use; all methods are protected by an internal mutex.
type StageFactory struct {
	mu            sync.RWMutex
	defaultConfig *Config
}

// TestConfigOption is a functional option for customizing the simulated backend
// used by CreateSimulationForTesting.
type TestConfigOption func(*sim.Config)

// NewStageFactory creates a new factory with default configuration
// and RESIDUAL_* environment overrides applied.
func NewStageFactory() *StageFactory {
	defaultConfig := createDefaultConfig()
	applyEnvironmentOverrides(defaultConfig)
	logConfigurationInfo(defaultConfig)

	return &StageFactory{
		defaultConfig: defaultConfig,
	}
}

// createDefaultConfig initializes the default stage configuration.
//
// Default Value Rationale:
//   - UseSimulation: false - real inference unless simulation is explicitly enabled
//   - InferTimeout: 0 - inference is unbounded; real-time callers set a budget
//   - Seed: 0 - reproducible random mode output
func createDefaultConfig() *Config {
	return &Config{
		Stage:         stage.DefaultConfig(),
		UseSimulation: false,
	}
}

// applyEnvironmentOverrides updates configuration based on environment variables.
// Invalid values are logged and ignored.
func applyEnvironmentOverrides(config *Config) {
	parseBackendSetting(config)
	parseModelSetting(config)
	parseModeSetting(config)
	parseTimeoutSetting(config)
	parseSeedSetting(config)
	parseSimulationSetting(config)
}

func parseBackendSetting(config *Config) {
	if backend := os.Getenv(EnvBackend); backend != "" {
		config.Stage.Backend = backend
	}
}

func parseModelSetting(config *Config) {
	if model := os.Getenv(EnvModel); model != "" {
		config.Stage.Model = model
	}
}

// parseModeSetting updates Mode from RESIDUAL_MODE. Unknown modes are logged and ignored.
func parseModeSetting(config *Config) {
	modeStr := os.Getenv(EnvMode)
	if modeStr == "" {
		return
	}
	mode, err := stage.ParseMode(modeStr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseModeSetting",
			"env_var":     EnvMode,
			"value":       modeStr,
			"error":       err.Error(),
			"using_value": config.Stage.Mode,
		}).Warn("Failed to parse RESIDUAL_MODE environment variable, using default")
		return
	}
	config.Stage.Mode = mode
}

// parseTimeoutSetting updates InferTimeout from RESIDUAL_INFER_TIMEOUT_MS.
// It validates the value is within bounds [MinInferTimeoutMs, MaxInferTimeoutMs] and
// logs warnings for invalid values.
func parseTimeoutSetting(config *Config) {
	timeoutStr := os.Getenv(EnvInferTimeout)
	if timeoutStr == "" {
		return
	}
	timeout, err := strconv.Atoi(timeoutStr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseTimeoutSetting",
			"env_var":     EnvInferTimeout,
			"value":       timeoutStr,
			"error":       err.Error(),
			"using_value": config.Stage.InferTimeout,
		}).Warn("Failed to parse RESIDUAL_INFER_TIMEOUT_MS environment variable, using default")
		return
	}
	if timeout < MinInferTimeoutMs || timeout > MaxInferTimeoutMs {
		logrus.WithFields(logrus.Fields{
			"function":    "parseTimeoutSetting",
			"env_var":     EnvInferTimeout,
			"value":       timeout,
			"min":         MinInferTimeoutMs,
			"max":         MaxInferTimeoutMs,
			"using_value": config.Stage.InferTimeout,
		}).Warn("RESIDUAL_INFER_TIMEOUT_MS value out of bounds, using default")
		return
	}
	config.Stage.InferTimeout = time.Duration(timeout) * time.Millisecond
}

func parseSeedSetting(config *Config) {
	seedStr := os.Getenv(EnvSeed)
	if seedStr == "" {
		return
	}
	seed, err := strconv.ParseUint(seedStr, 10, 64)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseSeedSetting",
			"env_var":     EnvSeed,
			"value":       seedStr,
			"error":       err.Error(),
			"using_value": config.Stage.Seed,
		}).Warn("Failed to parse RESIDUAL_SEED environment variable, using default")
		return
	}
	config.Stage.Seed = seed
}

func parseSimulationSetting(config *Config) {
	useSimStr := os.Getenv(EnvUseSimulation)
	if useSimStr == "" {
		return
	}
	useSim, err := strconv.ParseBool(useSimStr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseSimulationSetting",
			"env_var":     EnvUseSimulation,
			"value":       useSimStr,
			"error":       err.Error(),
			"using_value": config.UseSimulation,
		}).Warn("Failed to parse RESIDUAL_USE_SIMULATION environment variable, using default")
		return
	}
	config.UseSimulation = useSim
}

func logConfigurationInfo(config *Config) {
	logrus.WithFields(logrus.Fields{
		"function":       "NewStageFactory",
		"backend":        config.Stage.Backend,
		"model":          config.Stage.Model,
		"mode":           config.Stage.Mode,
		"infer_timeout":  config.Stage.InferTimeout,
		"seed":           config.Stage.Seed,
		"use_simulation": config.UseSimulation,
	}).Info("Created stage factory with configuration")
}

// CreateStage creates a stage from the factory's default configuration.
func (f *StageFactory) CreateStage(sink stage.Sink, opts ...stage.Option) (*stage.Stage, error) {
	return f.CreateStageWithConfig(nil, sink, opts...)
}

// CreateStageWithConfig creates a stage from config, or from the default
// configuration if config is nil. In simulation mode the configured backend
// is replaced by a fresh simulated one.
func (f *StageFactory) CreateStageWithConfig(config *Config, sink stage.Sink, opts ...stage.Option) (*stage.Stage, error) {
	if config == nil {
		config = f.GetCurrentConfig()
	}
	cfg := config.Stage

	logrus.WithFields(logrus.Fields{
		"function":       "CreateStageWithConfig",
		"backend":        cfg.Backend,
		"model":          cfg.Model,
		"mode":           cfg.Mode,
		"use_simulation": config.UseSimulation,
	}).Info("Creating residual stage")

	if config.UseSimulation {
		if cfg.Model == "" {
			cfg.Model = SimulatedModel
		}
		opts = append([]stage.Option{stage.WithBackend(sim.NewBackend(sim.Config{}))}, opts...)
	}

	st, err := stage.New(cfg, sink, opts...)
	if err != nil {
		return nil, fmt.Errorf("create stage: %w", err)
	}
	return st, nil
}

// WithFailingInferCalls makes the listed 1-based inference calls fail.
func WithFailingInferCalls(calls ...int) TestConfigOption {
	return func(c *sim.Config) {
		c.FailInferCalls = append(c.FailInferCalls, calls...)
	}
}

// WithInferDelay delays every simulated inference call.
func WithInferDelay(d time.Duration) TestConfigOption {
	return func(c *sim.Config) {
		c.Delay = d
	}
}

// WithResidual sets the constant value of every simulated output sample.
func WithResidual(v float32) TestConfigOption {
	return func(c *sim.Config) {
		c.Residual = v
	}
}

// CreateSimulationForTesting creates a stage backed by a new simulated
// backend and returns both, so tests can inspect the inference log.
// The stage uses the factory's default configuration with SimulatedModel as model.
func (f *StageFactory) CreateSimulationForTesting(sink stage.Sink, opts ...TestConfigOption) (*stage.Stage, *sim.Backend, error) {
	simConfig := sim.Config{}
	for _, opt := range opts {
		opt(&simConfig)
	}
	backend := sim.NewBackend(simConfig)

	cfg := f.GetCurrentConfig().Stage
	cfg.Model = SimulatedModel

	logrus.WithFields(logrus.Fields{
		"function":         "CreateSimulationForTesting",
		"fail_infer_calls": simConfig.FailInferCalls,
		"delay":            simConfig.Delay,
	}).Info("Creating simulated stage for testing")

	st, err := stage.New(cfg, sink, stage.WithBackend(backend))
	if err != nil {
		return nil, nil, fmt.Errorf("create simulated stage: %w", err)
	}
	return st, backend, nil
}

// SwitchToSimulation switches the configuration to use simulation
func (f *StageFactory) SwitchToSimulation() {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SwitchToSimulation",
		"previous": f.defaultConfig.UseSimulation,
	}).Info("Switching factory to simulation mode")

	f.defaultConfig.UseSimulation = true
}

// SwitchToReal switches the configuration to use the configured backend
func (f *StageFactory) SwitchToReal() {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SwitchToReal",
		"previous": f.defaultConfig.UseSimulation,
	}).Info("Switching factory to real mode")

	f.defaultConfig.UseSimulation = false
}

// GetCurrentConfig returns a copy of the current default configuration
func (f *StageFactory) GetCurrentConfig() *Config {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c := *f.defaultConfig
	return &c
}

// IsUsingSimulation returns true if the factory is configured for simulation
func (f *StageFactory) IsUsingSimulation() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.defaultConfig.UseSimulation
}

// UpdateConfig updates the factory's default configuration
func (f *StageFactory) UpdateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":       "UpdateConfig",
		"old_simulation": f.defaultConfig.UseSimulation,
		"new_simulation": config.UseSimulation,
		"old_model":      f.defaultConfig.Stage.Model,
		"new_model":      config.Stage.Model,
	}).Info("Updating factory configuration")

	c := *config
	f.defaultConfig = &c
	return nil
}
