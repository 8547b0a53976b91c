package dnn

import (
	"fmt"
	"strings"
)

// DataType identifies the element domain of tensor samples.
type DataType uint8

const (
	// Float32 samples are normalized to [0,1].
	Float32 DataType = iota
	// Uint8 samples carry raw fixed-point values in [0,255].
	Uint8
)

// String returns the data type name.
func (d DataType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Uint8:
		return "uint8"
	default:
		return fmt.Sprintf("DataType(%d)", uint8(d))
	}
}

// Scale returns the factor that maps an 8-bit sample value into this domain.
func (d DataType) Scale() float32 {
	if d == Uint8 {
		return 1
	}
	return 1.0 / 255.0
}

// ParseDataType parses a data type name as returned by DataType.String.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(s) {
	case "float32", "float", "f32":
		return Float32, nil
	case "uint8", "u8", "fixed":
		return Uint8, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", s)
	}
}

// TensorDesc describes a planar CHW tensor.
type TensorDesc struct {
	DataType DataType
	Width    int
	Height   int
	Channels int
}

// Len returns the number of samples a tensor of this shape holds.
func (d TensorDesc) Len() int {
	return d.Width * d.Height * d.Channels
}

// Validate checks that every dimension is positive.
func (d TensorDesc) Validate() error {
	if d.Width <= 0 || d.Height <= 0 || d.Channels <= 0 {
		return fmt.Errorf("invalid tensor shape %s", d)
	}
	return nil
}

// String returns the shape as CxHxW with the data type.
func (d TensorDesc) String() string {
	return fmt.Sprintf("%s[%dx%dx%d]", d.DataType, d.Channels, d.Height, d.Width)
}

// Tensor is a planar CHW block of samples.
type Tensor struct {
	Desc TensorDesc
	Data []float32
}

// NewTensor allocates a zeroed tensor of the given shape.
func NewTensor(desc TensorDesc) *Tensor {
	return &Tensor{Desc: desc, Data: make([]float32, desc.Len())}
}

// Channel returns the samples of channel c as a slice into Data.
func (t *Tensor) Channel(c int) []float32 {
	n := t.Desc.Width * t.Desc.Height
	return t.Data[c*n : (c+1)*n]
}

// Validate checks that Data holds exactly the samples Desc describes.
func (t *Tensor) Validate() error {
	if t == nil {
		return fmt.Errorf("tensor cannot be nil")
	}
	if err := t.Desc.Validate(); err != nil {
		return err
	}
	if len(t.Data) != t.Desc.Len() {
		return fmt.Errorf("tensor %s holds %d samples, expected %d", t.Desc, len(t.Data), t.Desc.Len())
	}
	return nil
}
