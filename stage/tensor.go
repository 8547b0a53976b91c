package stage

import (
	"fmt"

	"github.com/opd-ai/residual/dnn"
	"github.com/opd-ai/residual/frame"
	"github.com/opd-ai/residual/residual"
)

// packTensor converts the three planes of f into a CHW tensor of shape desc.
// Subsampled planes are upsampled to full resolution first.
func packTensor(f *frame.Frame, desc dnn.TensorDesc, scaler *frame.Scaler) (*dnn.Tensor, error) {
	t := dnn.NewTensor(desc)
	scale := desc.DataType.Scale()
	for c := 0; c < desc.Channels; c++ {
		plane, err := scaler.UpsamplePlane(f, c)
		if err != nil {
			return nil, err
		}
		ch := t.Channel(c)
		for i, v := range plane {
			ch[i] = float32(v) * scale
		}
	}
	return t, nil
}

// unpackResidual quantizes every output channel into its plane buffer.
// scale maps 8-bit values into the tensor domain.
func unpackResidual(out *dnn.Tensor, buffers *residual.Manager, scale float32) error {
	planes, err := buffers.Planes()
	if err != nil {
		return err
	}
	for c, buf := range planes {
		if err := residual.Quantize(buf, out.Channel(c), scale); err != nil {
			return fmt.Errorf("%w: channel %d: %w", dnn.ErrInference, c, err)
		}
	}
	return nil
}
