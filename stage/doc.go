// Package stage implements the residual video stage: a frame-synchronous
// filter that runs an inference backend on every frame of a stream and adds
// the resulting per-pixel residual to each color plane.
//
// # Lifecycle
//
// New resolves the backend and loads the model. The first frame (or an
// explicit Configure call) negotiates the stream geometry: the pixel format
// must have exactly three planes, the tensor shape is fixed and three
// residual plane buffers are allocated. Close releases both.
//
//	st, err := stage.New(stage.Config{Model: "model.yaml"}, sink)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	for f := range frames {
//	    if err := st.FilterFrame(ctx, f); err != nil {
//	        return err // fatal: configuration, format or allocation
//	    }
//	}
//
// # Frame Ownership
//
// FilterFrame takes ownership of its input. A frame that is exclusively
// held is modified in place and forwarded; a shared frame is copied into a
// new frame first and the input reference is released. Exactly one frame is
// pushed to the sink per input frame, in order.
//
// # Failure Handling
//
// Setup failures are fatal and sticky. Inference failures, including
// timeouts, are not: the frame is forwarded with its original pixels and a
// Diagnostic is recorded.
//
// # Modes
//
// ModeDNN merges the model output. ModeRandom merges bounded pseudorandom
// values from a generator seeded by Config.Seed. ModePassthrough forwards
// frames unchanged.
package stage
