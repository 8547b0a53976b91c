package stage

import "github.com/opd-ai/residual/frame"

// Sink receives every frame the stage emits, in input order.
// The sink takes ownership of the frame.
type Sink interface {
	PushFrame(f *frame.Frame) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(f *frame.Frame) error

// PushFrame calls fn(f).
func (fn SinkFunc) PushFrame(f *frame.Frame) error {
	return fn(f)
}
