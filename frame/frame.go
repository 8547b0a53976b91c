// Package frame provides the planar video frame model used by the residual stage.
//
// A Frame carries per-plane pixel data, stream metadata and a shared reference
// count. The reference count is the frame's exclusivity flag: a holder may
// mutate pixel data in place only while IsWritable reports true.
package frame

import (
	"fmt"
	"sync/atomic"
)

// Frame represents one planar video frame.
//
// Frames obtained from Ref share pixel storage and the reference count with
// the frame they were made from. Metadata fields are per reference.
type Frame struct {
	Format *Format
	Width  int
	Height int

	Data   [][]byte // one slice per plane
	Stride []int    // bytes per row, per plane

	PTS      int64  // presentation timestamp in stream time base
	Duration int64  // duration in stream time base
	Pos      int64  // byte position of the frame in the source, -1 if unknown
	Sequence uint64 // sequence number assigned by the source

	refs     *atomic.Int32
	released bool
}

// New allocates a frame with tightly packed planes for the given format and geometry.
// Pos starts at -1 (unknown).
func New(format *Format, width, height int) *Frame {
	f := &Frame{
		Format: format,
		Width:  width,
		Height: height,
		Data:   make([][]byte, format.Planes()),
		Stride: make([]int, format.Planes()),
		Pos:    -1,
		refs:   new(atomic.Int32),
	}
	for i := range f.Data {
		pw, ph := format.PlaneDims(i, width, height)
		f.Stride[i] = pw
		f.Data[i] = make([]byte, pw*ph)
	}
	f.refs.Store(1)
	return f
}

// NewLike allocates a new exclusively owned frame with the format and geometry of f.
// Pixel data is zeroed and metadata is not copied.
func NewLike(f *Frame) *Frame {
	return New(f.Format, f.Width, f.Height)
}

// Ref returns a new reference to the same pixel storage.
// Both references report IsWritable false until one of them is released.
func (f *Frame) Ref() *Frame {
	f.refs.Add(1)
	r := *f
	r.Data = append([][]byte(nil), f.Data...)
	r.Stride = append([]int(nil), f.Stride...)
	r.released = false
	return &r
}

// IsWritable reports whether this reference is the only holder of the pixel storage.
func (f *Frame) IsWritable() bool {
	return !f.released && f.refs.Load() == 1
}

// RefCount returns the number of live references to the pixel storage.
func (f *Frame) RefCount() int {
	return int(f.refs.Load())
}

// Released reports whether Release was called on this reference.
func (f *Frame) Released() bool {
	return f.released
}

// Release drops this reference. Releasing twice is a no-op.
func (f *Frame) Release() {
	if f.released {
		return
	}
	f.released = true
	f.refs.Add(-1)
	f.Data = nil
}

// PlaneDims returns the width in bytes and height in rows of plane i.
func (f *Frame) PlaneDims(i int) (int, int) {
	return f.Format.PlaneDims(i, f.Width, f.Height)
}

// Validate checks that the frame planes match its format and geometry.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: frame cannot be nil", ErrInvalidFrame)
	}
	if f.released {
		return ErrReleased
	}
	if f.Format == nil {
		return fmt.Errorf("%w: missing pixel format", ErrInvalidFrame)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if len(f.Data) != f.Format.Planes() || len(f.Stride) != f.Format.Planes() {
		return fmt.Errorf("%w: %s expects %d planes, got %d", ErrInvalidFrame,
			f.Format.Name, f.Format.Planes(), len(f.Data))
	}
	for i := range f.Data {
		pw, ph := f.PlaneDims(i)
		if f.Stride[i] < pw {
			return fmt.Errorf("%w: plane %d stride %d below width %d", ErrInvalidFrame, i, f.Stride[i], pw)
		}
		if need := f.Stride[i]*(ph-1) + pw; len(f.Data[i]) < need {
			return fmt.Errorf("%w: plane %d too small: got %d, expected %d", ErrInvalidFrame, i, len(f.Data[i]), need)
		}
	}
	return nil
}

// CopyProps copies stream metadata from src onto dst.
func CopyProps(dst, src *Frame) {
	dst.PTS = src.PTS
	dst.Duration = src.Duration
	dst.Pos = src.Pos
	dst.Sequence = src.Sequence
}

// CopyPixels copies the pixel payload of src into dst row by row.
// Both frames must share format and geometry; strides may differ.
func CopyPixels(dst, src *Frame) error {
	if dst.Format != src.Format || dst.Width != src.Width || dst.Height != src.Height {
		return fmt.Errorf("%w: %s %dx%d vs %s %dx%d", ErrGeometryMismatch,
			dst.Format, dst.Width, dst.Height, src.Format, src.Width, src.Height)
	}
	for i := range src.Data {
		pw, ph := src.PlaneDims(i)
		for y := 0; y < ph; y++ {
			copy(dst.Data[i][y*dst.Stride[i]:y*dst.Stride[i]+pw], src.Data[i][y*src.Stride[i]:y*src.Stride[i]+pw])
		}
	}
	return nil
}

// Clone returns an exclusively owned deep copy of f, metadata included.
func (f *Frame) Clone() *Frame {
	c := NewLike(f)
	CopyProps(c, f)
	// Same format and geometry by construction.
	_ = CopyPixels(c, f)
	return c
}

// String returns a short description of the frame.
func (f *Frame) String() string {
	return fmt.Sprintf("%s %dx%d seq=%d pos=%d pts=%d", f.Format, f.Width, f.Height, f.Sequence, f.Pos, f.PTS)
}
