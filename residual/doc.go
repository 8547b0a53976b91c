// Package residual holds the per-plane residual state of the stage and the
// operations on it: buffer ownership, quantization of inference output,
// pseudorandom synthesis and merging into frames.
package residual
