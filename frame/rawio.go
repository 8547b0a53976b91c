package frame

import (
	"errors"
	"fmt"
	"io"
)

// FrameSize returns the number of bytes one tightly packed raw frame occupies.
func FrameSize(format *Format, width, height int) int {
	total := 0
	for i := 0; i < format.Planes(); i++ {
		pw, ph := format.PlaneDims(i, width, height)
		total += pw * ph
	}
	return total
}

// ReadFrame fills f with one tightly packed raw planar frame read from r.
//
// Returns io.EOF if r is exhausted before the first byte of the frame and
// io.ErrUnexpectedEOF if the frame is truncated.
func ReadFrame(r io.Reader, f *Frame) error {
	first := true
	for i := range f.Data {
		pw, ph := f.PlaneDims(i)
		for y := 0; y < ph; y++ {
			row := f.Data[i][y*f.Stride[i] : y*f.Stride[i]+pw]
			n, err := io.ReadFull(r, row)
			if err != nil {
				if first && n == 0 && errors.Is(err, io.EOF) {
					return io.EOF
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return io.ErrUnexpectedEOF
				}
				return fmt.Errorf("read plane %d row %d: %w", i, y, err)
			}
			first = false
		}
	}
	return nil
}

// WriteFrame writes f to w as one tightly packed raw planar frame.
func WriteFrame(w io.Writer, f *Frame) error {
	for i := range f.Data {
		pw, ph := f.PlaneDims(i)
		for y := 0; y < ph; y++ {
			if _, err := w.Write(f.Data[i][y*f.Stride[i] : y*f.Stride[i]+pw]); err != nil {
				return fmt.Errorf("write plane %d row %d: %w", i, y, err)
			}
		}
	}
	return nil
}
