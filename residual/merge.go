package residual

import (
	"fmt"
	"math"

	"github.com/opd-ai/residual/frame"
)

// Quantize converts one tensor channel into buf.
//
// Each sample is divided by scale, the factor that maps 8-bit values into the
// tensor domain, rounded and clamped to the int8 range.
func Quantize(buf *PlaneBuffer, channel []float32, scale float32) error {
	if len(channel) != len(buf.Data) {
		return fmt.Errorf("channel holds %d samples, buffer %d", len(channel), len(buf.Data))
	}
	if scale == 0 {
		scale = 1
	}
	for i, v := range channel {
		if math.IsNaN(float64(v)) {
			buf.Data[i] = 0
			continue
		}
		buf.Data[i] = clampInt8(math.Round(float64(v / scale)))
	}
	return nil
}

// Merge adds buf to plane i of f in place, clamping samples to 0..255.
// Subsampled planes read the residual at the full resolution position of
// each of their samples.
func Merge(f *frame.Frame, i int, buf *PlaneBuffer) {
	merge(f, i, buf, 0)
}

// MergeInterior is Merge restricted to the interior of plane i: the plane's
// own one-sample border is left untouched, whatever its subsampling.
func MergeInterior(f *frame.Frame, i int, buf *PlaneBuffer) {
	merge(f, i, buf, 1)
}

func merge(f *frame.Frame, i int, buf *PlaneBuffer, border int) {
	pw, ph := f.PlaneDims(i)
	sw, sh := f.Format.ChromaShift(i)
	plane := f.Data[i]
	stride := f.Stride[i]

	for y := border; y < ph-border; y++ {
		row := plane[y*stride : y*stride+pw]
		for x := border; x < pw-border; x++ {
			r := int(buf.At(x<<sw, y<<sh))
			row[x] = clampUint8(int(row[x]) + r)
		}
	}
}

// MergeAll merges every buffer of m into the matching plane of f.
func MergeAll(f *frame.Frame, m *Manager) error {
	return mergeAll(f, m, Merge)
}

// MergeAllInterior merges every buffer of m into the interior of the
// matching plane of f.
func MergeAllInterior(f *frame.Frame, m *Manager) error {
	return mergeAll(f, m, MergeInterior)
}

func mergeAll(f *frame.Frame, m *Manager, mergePlane func(*frame.Frame, int, *PlaneBuffer)) error {
	planes, err := m.Planes()
	if err != nil {
		return err
	}
	if len(f.Data) != len(planes) {
		return fmt.Errorf("frame has %d planes, %d residual buffers", len(f.Data), len(planes))
	}
	for i, buf := range planes {
		mergePlane(f, i, buf)
	}
	return nil
}

func clampInt8(v float64) int8 {
	if v < math.MinInt8 {
		return math.MinInt8
	}
	if v > math.MaxInt8 {
		return math.MaxInt8
	}
	return int8(v)
}

func clampUint8(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
