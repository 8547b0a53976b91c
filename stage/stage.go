package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/residual/dnn"
	"github.com/opd-ai/residual/frame"
	"github.com/opd-ai/residual/residual"
)

// threadSetter is implemented by backends with tunable parallelism.
type threadSetter interface {
	SetNumThreads(n int)
}

// Option customizes a Stage.
type Option func(*Stage)

// WithBackend uses backend directly instead of resolving Config.Backend.
func WithBackend(backend dnn.Backend) Option {
	return func(s *Stage) { s.backend = backend }
}

// WithAllocator sets the plane buffer allocator.
func WithAllocator(alloc residual.Allocator) Option {
	return func(s *Stage) { s.buffers = residual.NewManager(alloc) }
}

// WithTimeProvider sets the clock used for latency statistics.
func WithTimeProvider(tp TimeProvider) Option {
	return func(s *Stage) { s.clock = tp }
}

// Stage adds a model-computed residual to every frame of a stream.
//
// A Stage processes one frame at a time and is not safe for concurrent
// FilterFrame calls. Stats and Diagnostics may be read from any goroutine.
type Stage struct {
	id      string
	cfg     Config
	backend dnn.Backend
	handle  *dnn.Handle
	buffers *residual.Manager
	synth   *residual.Synthesizer
	scaler  *frame.Scaler
	sink    Sink
	clock   TimeProvider

	geometry   Geometry
	negotiated bool
	setupErr   error
	closed     bool
	frameCount uint64

	// pending is non-nil while an abandoned inference is still running.
	pending chan struct{}

	stats statsRecorder
}

// New creates a stage that forwards frames to sink.
//
// The backend is resolved and the model is loaded here; failures are
// returned as ErrConfiguration or ErrModelLoad and leave nothing allocated.
func New(cfg Config, sink Sink, opts ...Option) (*Stage, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: sink cannot be nil", ErrConfiguration)
	}

	s := &Stage{
		id:     uuid.NewString(),
		cfg:    cfg,
		synth:  residual.NewSynthesizer(cfg.Seed),
		scaler: frame.NewScaler(),
		sink:   sink,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = getTimeProvider(s.clock)
	if s.buffers == nil {
		s.buffers = residual.NewManager(nil)
	}

	if s.backend == nil {
		backend, err := dnn.Resolve(cfg.Backend)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		s.backend = backend
	}
	if ts, ok := s.backend.(threadSetter); ok && cfg.NumThreads > 0 {
		ts.SetNumThreads(cfg.NumThreads)
	}

	handle, err := dnn.Load(s.backend, cfg.Model)
	if err != nil {
		return nil, err
	}
	s.handle = handle

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"stage":    s.id,
		"backend":  s.backend.Name(),
		"model":    cfg.Model,
		"digest":   handle.Digest(),
		"mode":     cfg.Mode,
		"timeout":  cfg.InferTimeout,
	}).Info("Residual stage created")

	return s, nil
}

// ID returns the unique identifier of the stage used in its log lines.
func (s *Stage) ID() string {
	return s.id
}

// Config returns the effective configuration.
func (s *Stage) Config() Config {
	return s.cfg
}

// Geometry returns the negotiated geometry and whether negotiation succeeded.
func (s *Stage) Geometry() (Geometry, bool) {
	return s.geometry, s.negotiated
}

// Buffers returns the number of live residual plane buffers.
func (s *Stage) Buffers() int {
	return s.buffers.Allocated()
}

// Stats returns a snapshot of the processing counters.
func (s *Stage) Stats() Stats {
	return s.stats.snapshot()
}

// Diagnostics returns the recorded inference failures, oldest first.
func (s *Stage) Diagnostics() []Diagnostic {
	return s.stats.diagnosticLog()
}

// FilterFrame processes in and pushes exactly one frame to the sink.
//
// The stage takes ownership of in. When in is the only reference to its
// pixels the residual is applied in place; otherwise a new frame carrying
// the input's pixels and metadata is emitted and in is released.
//
// Inference failures are not returned: the frame is forwarded without a
// residual and a Diagnostic is recorded. Every returned error is fatal.
func (s *Stage) FilterFrame(ctx context.Context, in *frame.Frame) error {
	if in == nil {
		return ErrNilFrame
	}
	if s.closed {
		in.Release()
		return ErrClosed
	}
	if err := in.Validate(); err != nil {
		in.Release()
		return err
	}
	if err := s.Configure(GeometryOf(in)); err != nil {
		in.Release()
		return err
	}

	out := in
	if !in.IsWritable() {
		out = frame.NewLike(in)
		frame.CopyProps(out, in)
		if err := frame.CopyPixels(out, in); err != nil {
			in.Release()
			return err
		}
	}

	n := s.frameCount
	s.frameCount++

	if err := s.applyResidual(ctx, n, in, out); err != nil {
		if out != in {
			out.Release()
		}
		in.Release()
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Stage.FilterFrame",
		"stage":    s.id,
		"n":        n,
		"pos":      in.Pos,
		"size":     fmt.Sprintf("%dx%d", in.Width, in.Height),
	}).Info("Frame processed")

	s.stats.frame(out != in, s.clock.Now())

	if out != in {
		in.Release()
	}

	if err := s.sink.PushFrame(out); err != nil {
		return fmt.Errorf("push frame %d: %w", n, err)
	}
	return nil
}

// applyResidual computes the residual for frame n according to the mode and
// merges it into out. Inference failures are recorded and swallowed.
func (s *Stage) applyResidual(ctx context.Context, n uint64, in, out *frame.Frame) error {
	switch s.cfg.Mode {
	case ModePassthrough:
		return nil
	case ModeRandom:
		planes, err := s.buffers.Planes()
		if err != nil {
			return err
		}
		for _, buf := range planes {
			s.synth.Fill(buf)
		}
		return residual.MergeAllInterior(out, s.buffers)
	}

	err := s.inferResidual(ctx, in)
	if errors.Is(err, dnn.ErrInference) {
		timeout := errors.Is(err, context.DeadlineExceeded)
		s.stats.failure(Diagnostic{Frame: n, Pos: in.Pos, Err: err, Time: s.clock.Now()}, timeout)

		logrus.WithFields(logrus.Fields{
			"function": "Stage.FilterFrame",
			"stage":    s.id,
			"n":        n,
			"pos":      in.Pos,
			"timeout":  timeout,
			"error":    err.Error(),
		}).Warn("Inference failed, forwarding frame without residual")
		return nil
	}
	if err != nil {
		return err
	}
	return residual.MergeAll(out, s.buffers)
}

// inferResidual runs the model on in and fills the plane buffers.
func (s *Stage) inferResidual(ctx context.Context, in *frame.Frame) error {
	desc, _ := s.handle.Desc()
	input, err := packTensor(in, desc, s.scaler)
	if err != nil {
		return fmt.Errorf("pack tensor: %w", err)
	}

	start := s.clock.Now()
	output, err := s.infer(ctx, input)
	if err != nil {
		return err
	}
	s.stats.inference(s.clock.Now().Sub(start))

	return unpackResidual(output, s.buffers, desc.DataType.Scale())
}

// infer calls the model, bounded by Config.InferTimeout when set. A call
// that outlives its timeout keeps running in the background; frames that
// arrive before it returns skip inference.
func (s *Stage) infer(ctx context.Context, input *dnn.Tensor) (*dnn.Tensor, error) {
	if s.pending != nil {
		select {
		case <-s.pending:
			s.pending = nil
		default:
			return nil, fmt.Errorf("%w: previous inference still running", dnn.ErrInference)
		}
	}

	if s.cfg.InferTimeout <= 0 {
		return s.handle.Infer(ctx, input)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.InferTimeout)
	defer cancel()

	type result struct {
		out *dnn.Tensor
		err error
	}
	results := make(chan result, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		out, err := s.handle.Infer(ctx, input)
		results <- result{out, err}
	}()

	select {
	case r := <-results:
		<-done
		return r.out, r.err
	case <-ctx.Done():
		s.pending = done
		return nil, fmt.Errorf("%w: %w", dnn.ErrInference, ctx.Err())
	}
}

// Close releases the plane buffers and the model. It waits for an abandoned
// inference call to return first. Calling Close more than once is a no-op.
func (s *Stage) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.pending != nil {
		<-s.pending
		s.pending = nil
	}

	s.buffers.ReleaseAll()
	err := s.handle.Release()

	stats := s.stats.snapshot()
	logrus.WithFields(logrus.Fields{
		"function":           "Stage.Close",
		"stage":              s.id,
		"frames":             stats.FramesProcessed,
		"inferences":         stats.Inferences,
		"inference_failures": stats.InferenceFailures,
		"avg_infer_time":     stats.AverageInferTime(),
	}).Info("Residual stage closed")

	return err
}
