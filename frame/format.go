package frame

import (
	"fmt"
	"sort"
)

// planeLayout describes how one plane relates to the frame geometry.
type planeLayout struct {
	shiftW     uint // log2 horizontal subsampling
	shiftH     uint // log2 vertical subsampling
	interleave int  // samples per pixel stored in this plane
}

// Format describes a planar pixel format.
//
// Only 8-bit formats are described; every sample occupies one byte.
type Format struct {
	Name   string
	planes []planeLayout
}

// Planes returns the number of planes of the format.
func (f *Format) Planes() int {
	return len(f.planes)
}

// PlaneDims returns the width in bytes and the height in rows of plane i
// for a frame of the given geometry. Subsampled dimensions round up.
func (f *Format) PlaneDims(i, width, height int) (int, int) {
	p := f.planes[i]
	w := ceilShift(width, p.shiftW) * p.interleave
	h := ceilShift(height, p.shiftH)
	return w, h
}

// ChromaShift returns the log2 subsampling of plane i.
func (f *Format) ChromaShift(i int) (shiftW, shiftH uint) {
	p := f.planes[i]
	return p.shiftW, p.shiftH
}

// String returns the format name.
func (f *Format) String() string {
	return f.Name
}

func ceilShift(v int, s uint) int {
	return (v + (1 << s) - 1) >> s
}

// Supported pixel formats.
var (
	// YUV420P is planar YUV with 2x2 chroma subsampling.
	YUV420P = &Format{Name: "yuv420p", planes: []planeLayout{{0, 0, 1}, {1, 1, 1}, {1, 1, 1}}}
	// YUV422P is planar YUV with horizontal chroma subsampling.
	YUV422P = &Format{Name: "yuv422p", planes: []planeLayout{{0, 0, 1}, {1, 0, 1}, {1, 0, 1}}}
	// YUV444P is planar YUV without subsampling.
	YUV444P = &Format{Name: "yuv444p", planes: []planeLayout{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}}
	// GBRP is planar RGB stored in G, B, R plane order.
	GBRP = &Format{Name: "gbrp", planes: []planeLayout{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}}
	// NV12 is a luma plane followed by one interleaved UV plane.
	NV12 = &Format{Name: "nv12", planes: []planeLayout{{0, 0, 1}, {1, 1, 2}}}
	// Gray is a single luma plane.
	Gray = &Format{Name: "gray", planes: []planeLayout{{0, 0, 1}}}
	// YUVA420P is YUV420P with a full resolution alpha plane.
	YUVA420P = &Format{Name: "yuva420p", planes: []planeLayout{{0, 0, 1}, {1, 1, 1}, {1, 1, 1}, {0, 0, 1}}}
)

var formats = map[string]*Format{
	YUV420P.Name:  YUV420P,
	YUV422P.Name:  YUV422P,
	YUV444P.Name:  YUV444P,
	GBRP.Name:     GBRP,
	NV12.Name:     NV12,
	Gray.Name:     Gray,
	YUVA420P.Name: YUVA420P,
}

// LookupFormat returns the format registered under name.
func LookupFormat(name string) (*Format, error) {
	f, ok := formats[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

// FormatNames returns the names of all known formats, sorted.
func FormatNames() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
