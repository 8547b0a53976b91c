package stage

import (
	"fmt"
	"strings"
	"time"

	"github.com/opd-ai/residual/dnn"
)

// Mode selects how the residual of each frame is produced.
type Mode string

const (
	// ModeDNN runs the model on every frame and merges its output.
	ModeDNN Mode = "dnn"
	// ModeRandom merges bounded pseudorandom residuals into the frame interior.
	ModeRandom Mode = "random"
	// ModePassthrough forwards frames without a residual.
	ModePassthrough Mode = "passthrough"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeDNN, ModeRandom, ModePassthrough:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrConfiguration, s)
	}
}

// Default configuration values.
const (
	DefaultBackend    = "native"
	DefaultInputName  = "x"
	DefaultOutputName = "y"
)

// Config holds stage options.
type Config struct {
	// Backend is the registry identifier of the inference backend.
	Backend string
	// Model is the model path or identifier passed to the backend. Required.
	Model string
	// Mode selects residual production. Empty means ModeDNN.
	Mode Mode
	// InputName and OutputName are the tensor names bound at negotiation.
	InputName  string
	OutputName string
	// DataType is the sample domain of the negotiated tensors.
	DataType dnn.DataType
	// InferTimeout bounds each inference call. Zero disables the bound.
	InferTimeout time.Duration
	// Seed seeds the random mode generator.
	Seed uint64
	// NumThreads bounds backend parallelism where supported. Zero keeps the
	// backend default.
	NumThreads int
}

// DefaultConfig returns a configuration with every optional field set.
// Model is left empty and must be provided.
func DefaultConfig() Config {
	return Config{
		Backend:    DefaultBackend,
		Mode:       ModeDNN,
		InputName:  DefaultInputName,
		OutputName: DefaultOutputName,
		DataType:   dnn.Float32,
	}
}

// withDefaults returns c with empty optional fields filled in.
func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.Mode == "" {
		c.Mode = ModeDNN
	}
	if c.InputName == "" {
		c.InputName = DefaultInputName
	}
	if c.OutputName == "" {
		c.OutputName = DefaultOutputName
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrConfiguration)
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.DataType != dnn.Float32 && c.DataType != dnn.Uint8 {
		return fmt.Errorf("%w: unknown data type %s", ErrConfiguration, c.DataType)
	}
	if c.InferTimeout < 0 {
		return fmt.Errorf("%w: negative inference timeout %s", ErrConfiguration, c.InferTimeout)
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("%w: negative thread count %d", ErrConfiguration, c.NumThreads)
	}
	return nil
}
