package native

import (
	"fmt"
	"os"
	"strings"

	"github.com/x448/float16"
	"gopkg.in/yaml.v3"
)

// Precision selects the storage precision of layer parameters.
type Precision string

const (
	PrecisionF32 Precision = "f32"
	PrecisionF16 Precision = "f16"
)

// Activation names supported by LayerSpec.
const (
	ActivationNone    = "none"
	ActivationReLU    = "relu"
	ActivationTanh    = "tanh"
	ActivationSigmoid = "sigmoid"
)

// LayerSpec describes one same-size square convolution.
//
// Weights are laid out row-major as [out][in][ky][kx].
type LayerSpec struct {
	InChannels  int       `yaml:"in_channels"`
	OutChannels int       `yaml:"out_channels"`
	Kernel      int       `yaml:"kernel"`
	Activation  string    `yaml:"activation"`
	Weights     []float32 `yaml:"weights"`
	Biases      []float32 `yaml:"biases"`
}

// ModelSpec is the YAML model description understood by the native backend.
type ModelSpec struct {
	Input     string      `yaml:"input"`
	Output    string      `yaml:"output"`
	Precision Precision   `yaml:"precision"`
	Layers    []LayerSpec `yaml:"layers"`
}

// ParseModel decodes and validates a YAML model description.
// Defaults: input "x", output "y", precision f32, activation none.
func ParseModel(data []byte) (*ModelSpec, error) {
	var spec ModelSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	if spec.Input == "" {
		spec.Input = "x"
	}
	if spec.Output == "" {
		spec.Output = "y"
	}
	if spec.Precision == "" {
		spec.Precision = PrecisionF32
	}
	spec.Precision = Precision(strings.ToLower(string(spec.Precision)))
	for i := range spec.Layers {
		if spec.Layers[i].Activation == "" {
			spec.Layers[i].Activation = ActivationNone
		}
		spec.Layers[i].Activation = strings.ToLower(spec.Layers[i].Activation)
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if spec.Precision == PrecisionF16 {
		spec.roundToHalf()
	}
	return &spec, nil
}

// LoadModelFile reads and parses the model description at path.
func LoadModelFile(path string) (*ModelSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseModel(data)
}

// Validate checks layer chaining and parameter counts.
// The network must consume and produce exactly three channels.
func (s *ModelSpec) Validate() error {
	if len(s.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalidModel)
	}
	switch s.Precision {
	case PrecisionF32, PrecisionF16:
	default:
		return fmt.Errorf("%w: unknown precision %q", ErrInvalidModel, s.Precision)
	}

	for i, l := range s.Layers {
		if l.InChannels <= 0 || l.OutChannels <= 0 {
			return fmt.Errorf("%w: layer %d: channel counts must be positive", ErrInvalidModel, i)
		}
		if l.Kernel <= 0 || l.Kernel%2 == 0 {
			return fmt.Errorf("%w: layer %d: kernel %d must be odd", ErrInvalidModel, i, l.Kernel)
		}
		if want := l.OutChannels * l.InChannels * l.Kernel * l.Kernel; len(l.Weights) != want {
			return fmt.Errorf("%w: layer %d: got %d weights, expected %d", ErrInvalidModel, i, len(l.Weights), want)
		}
		if len(l.Biases) != l.OutChannels {
			return fmt.Errorf("%w: layer %d: got %d biases, expected %d", ErrInvalidModel, i, len(l.Biases), l.OutChannels)
		}
		if i > 0 && s.Layers[i-1].OutChannels != l.InChannels {
			return fmt.Errorf("%w: layer %d takes %d channels, previous layer emits %d",
				ErrInvalidModel, i, l.InChannels, s.Layers[i-1].OutChannels)
		}
		switch l.Activation {
		case ActivationNone, ActivationReLU, ActivationTanh, ActivationSigmoid:
		default:
			return fmt.Errorf("%w: layer %d: unknown activation %q", ErrInvalidModel, i, l.Activation)
		}
	}

	if in := s.Layers[0].InChannels; in != 3 {
		return fmt.Errorf("%w: first layer takes %d channels, expected 3", ErrInvalidModel, in)
	}
	if out := s.Layers[len(s.Layers)-1].OutChannels; out != 3 {
		return fmt.Errorf("%w: last layer emits %d channels, expected 3", ErrInvalidModel, out)
	}
	return nil
}

func (s *ModelSpec) roundToHalf() {
	for i := range s.Layers {
		l := &s.Layers[i]
		for j, w := range l.Weights {
			l.Weights[j] = float16.Fromfloat32(w).Float32()
		}
		for j, b := range l.Biases {
			l.Biases[j] = float16.Fromfloat32(b).Float32()
		}
	}
}
