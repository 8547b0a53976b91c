package native

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// convLayer is a LayerSpec prepared for execution.
type convLayer struct {
	in, out    int
	kernel     int
	activation string
	weights    *mat.Dense // out x (in*k*k)
	biases     []float64
}

func newConvLayer(l LayerSpec) *convLayer {
	cols := l.InChannels * l.Kernel * l.Kernel
	w := make([]float64, len(l.Weights))
	for i, v := range l.Weights {
		w[i] = float64(v)
	}
	b := make([]float64, len(l.Biases))
	for i, v := range l.Biases {
		b[i] = float64(v)
	}
	return &convLayer{
		in:         l.InChannels,
		out:        l.OutChannels,
		kernel:     l.Kernel,
		activation: l.Activation,
		weights:    mat.NewDense(l.OutChannels, cols, w),
		biases:     b,
	}
}

// forward convolves src (CHW, c.in channels) into a new CHW buffer of c.out
// channels. Rows are split into bands computed concurrently, at most threads
// at a time. Borders are padded by clamping to the nearest edge sample.
func (c *convLayer) forward(ctx context.Context, src []float64, width, height, threads int) ([]float64, error) {
	dst := make([]float64, c.out*width*height)

	if threads < 1 {
		threads = 1
	}
	band := (height + threads - 1) / threads

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for y0 := 0; y0 < height; y0 += band {
		y0, y1 := y0, min(y0+band, height)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.forwardBand(src, dst, width, height, y0, y1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dst, nil
}

// forwardBand computes output rows [y0,y1) with one im2col matrix product.
func (c *convLayer) forwardBand(src, dst []float64, width, height, y0, y1 int) {
	k := c.kernel
	r := k / 2
	plane := width * height
	n := (y1 - y0) * width

	cols := mat.NewDense(c.in*k*k, n, nil)
	for ch := 0; ch < c.in; ch++ {
		chSrc := src[ch*plane : (ch+1)*plane]
		for ky := 0; ky < k; ky++ {
			for kx := 0; kx < k; kx++ {
				row := cols.RawRowView(ch*k*k + ky*k + kx)
				for y := y0; y < y1; y++ {
					sy := clampInt(y+ky-r, 0, height-1)
					base := (y - y0) * width
					for x := 0; x < width; x++ {
						sx := clampInt(x+kx-r, 0, width-1)
						row[base+x] = chSrc[sy*width+sx]
					}
				}
			}
		}
	}

	var res mat.Dense
	res.Mul(c.weights, cols)

	for o := 0; o < c.out; o++ {
		row := res.RawRowView(o)
		out := dst[o*plane+y0*width : o*plane+y1*width]
		for i, v := range row {
			out[i] = activate(c.activation, v+c.biases[o])
		}
	}
}

func activate(name string, v float64) float64 {
	switch name {
	case ActivationReLU:
		return math.Max(v, 0)
	case ActivationTanh:
		return math.Tanh(v)
	case ActivationSigmoid:
		return 1 / (1 + math.Exp(-v))
	default:
		return v
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
