package residual

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/residual/limits"
)

// PlaneBuffer holds the signed 8-bit residual of one color plane at full
// frame resolution.
type PlaneBuffer struct {
	Width  int
	Height int
	Data   []int8
}

// At returns the residual at (x, y) with coordinates clamped to the buffer.
func (b *PlaneBuffer) At(x, y int) int8 {
	x = min(max(x, 0), b.Width-1)
	y = min(max(y, 0), b.Height-1)
	return b.Data[y*b.Width+x]
}

// Reset zeroes the buffer.
func (b *PlaneBuffer) Reset() {
	clear(b.Data)
}

// Allocator obtains storage for one plane buffer.
type Allocator func(samples int) ([]int8, error)

// DefaultAllocator allocates from the Go heap.
func DefaultAllocator(samples int) ([]int8, error) {
	return make([]int8, samples), nil
}

// Manager owns the three plane buffers of one stage.
//
// Buffers are allocated once, at negotiation, and never resized.
type Manager struct {
	alloc  Allocator
	planes [limits.PlaneCount]*PlaneBuffer
}

// NewManager creates an empty manager. A nil allocator selects DefaultAllocator.
func NewManager(alloc Allocator) *Manager {
	if alloc == nil {
		alloc = DefaultAllocator
	}
	return &Manager{alloc: alloc}
}

// Allocate creates one width x height buffer per plane.
//
// Either all three buffers are allocated or none: on failure every buffer
// allocated by this call is released before ErrAllocation is returned.
func (m *Manager) Allocate(width, height int) error {
	if m.Allocated() > 0 {
		return ErrAlreadyAllocated
	}

	samples := width * height
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: invalid geometry %dx%d", ErrAllocation, width, height)
	}
	if err := limits.ValidatePlaneSamples(samples, limits.MaxPlaneSamples); err != nil {
		return fmt.Errorf("%w: %w", ErrAllocation, err)
	}

	for i := range m.planes {
		data, err := m.alloc(samples)
		if err == nil && len(data) < samples {
			err = fmt.Errorf("allocator returned %d samples, requested %d", len(data), samples)
		}
		if err != nil {
			m.ReleaseAll()

			logrus.WithFields(logrus.Fields{
				"function": "Manager.Allocate",
				"plane":    i,
				"width":    width,
				"height":   height,
				"error":    err.Error(),
			}).Error("Plane buffer allocation failed")

			return fmt.Errorf("%w: plane %d: %w", ErrAllocation, i, err)
		}
		m.planes[i] = &PlaneBuffer{Width: width, Height: height, Data: data[:samples]}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Manager.Allocate",
		"planes":   len(m.planes),
		"width":    width,
		"height":   height,
	}).Debug("Allocated residual plane buffers")

	return nil
}

// ReleaseAll drops every buffer. Calling it again is a no-op.
func (m *Manager) ReleaseAll() {
	for i := range m.planes {
		m.planes[i] = nil
	}
}

// Allocated returns the number of live buffers.
func (m *Manager) Allocated() int {
	n := 0
	for _, p := range m.planes {
		if p != nil {
			n++
		}
	}
	return n
}

// Plane returns buffer i, or nil if it is not allocated.
func (m *Manager) Plane(i int) *PlaneBuffer {
	if i < 0 || i >= len(m.planes) {
		return nil
	}
	return m.planes[i]
}

// Planes returns all buffers, or ErrNotAllocated if the manager is empty.
func (m *Manager) Planes() ([]*PlaneBuffer, error) {
	if m.Allocated() != len(m.planes) {
		return nil, ErrNotAllocated
	}
	return m.planes[:], nil
}
