package frame

import (
	"fmt"
)

// Scaler resamples individual planes.
//
// Implements bilinear interpolation. The residual stage uses it to bring
// subsampled chroma planes up to luma resolution before tensor packing.
type Scaler struct {
	// No fields needed for stateless scaling operations
}

// NewScaler creates a new plane scaler.
func NewScaler() *Scaler {
	return &Scaler{}
}

// ScalePlane resamples src into dst using bilinear interpolation.
//
// Parameters:
//   - src, srcWidth, srcHeight, srcStride: source plane
//   - dst, dstWidth, dstHeight, dstStride: destination plane
//
// Returns an error if either buffer is too small for its geometry.
func (s *Scaler) ScalePlane(src []byte, srcWidth, srcHeight, srcStride int,
	dst []byte, dstWidth, dstHeight, dstStride int) error {

	if srcWidth <= 0 || srcHeight <= 0 || dstWidth <= 0 || dstHeight <= 0 {
		return fmt.Errorf("invalid plane dimensions: %dx%d -> %dx%d", srcWidth, srcHeight, dstWidth, dstHeight)
	}

	if len(src) < (srcHeight-1)*srcStride+srcWidth {
		return fmt.Errorf("source buffer too small: %d < %d", len(src), (srcHeight-1)*srcStride+srcWidth)
	}

	if len(dst) < (dstHeight-1)*dstStride+dstWidth {
		return fmt.Errorf("destination buffer too small: %d < %d", len(dst), (dstHeight-1)*dstStride+dstWidth)
	}

	if srcWidth == dstWidth && srcHeight == dstHeight {
		for y := 0; y < dstHeight; y++ {
			copy(dst[y*dstStride:y*dstStride+dstWidth], src[y*srcStride:y*srcStride+srcWidth])
		}
		return nil
	}

	xRatio := float64(srcWidth) / float64(dstWidth)
	yRatio := float64(srcHeight) / float64(dstHeight)

	for y := 0; y < dstHeight; y++ {
		srcY := float64(y) * yRatio
		y1 := int(srcY)
		y2 := y1 + 1
		if y2 >= srcHeight {
			y2 = srcHeight - 1
		}
		fy := srcY - float64(y1)

		for x := 0; x < dstWidth; x++ {
			srcX := float64(x) * xRatio
			x1 := int(srcX)
			x2 := x1 + 1
			if x2 >= srcWidth {
				x2 = srcWidth - 1
			}
			fx := srcX - float64(x1)

			p11 := float64(src[y1*srcStride+x1])
			p12 := float64(src[y1*srcStride+x2])
			p21 := float64(src[y2*srcStride+x1])
			p22 := float64(src[y2*srcStride+x2])

			top := p11*(1-fx) + p12*fx
			bottom := p21*(1-fx) + p22*fx
			pixel := top*(1-fy) + bottom*fy

			dst[y*dstStride+x] = byte(pixel + 0.5) // Round to nearest
		}
	}

	return nil
}

// UpsamplePlane returns plane i of f resampled to the full frame geometry,
// tightly packed with stride f.Width. Full resolution planes are copied.
func (s *Scaler) UpsamplePlane(f *Frame, i int) ([]byte, error) {
	pw, ph := f.PlaneDims(i)
	out := make([]byte, f.Width*f.Height)
	if err := s.ScalePlane(f.Data[i], pw, ph, f.Stride[i], out, f.Width, f.Height, f.Width); err != nil {
		return nil, fmt.Errorf("failed to upsample plane %d: %w", i, err)
	}
	return out, nil
}
