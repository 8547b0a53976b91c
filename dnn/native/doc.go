// Package native implements the "native" inference backend: small
// convolutional networks described in YAML and evaluated on the CPU.
//
// A model file lists same-size square convolutions:
//
//	input: x
//	output: y
//	precision: f32       # f16 rounds parameters to half precision at load
//	layers:
//	  - in_channels: 3
//	    out_channels: 3
//	    kernel: 3
//	    activation: tanh  # relu | tanh | sigmoid | none
//	    weights: [...]    # out*in*k*k, laid out [out][in][ky][kx]
//	    biases: [...]     # out
//
// The first layer must take three channels and the last must emit three.
// Borders are padded by repeating edge samples. Each layer is computed as an
// im2col matrix product with gonum, split into row bands that run in
// parallel.
//
// Importing the package registers the backend:
//
//	import _ "github.com/opd-ai/residual/dnn/native"
package native
