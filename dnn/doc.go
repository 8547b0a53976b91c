// Package dnn defines the contract between the residual stage and its
// pluggable inference backends.
//
// # Core Interfaces
//
// [Backend] is implemented once per inference engine. It loads and frees
// models. [Model] is the opaque, backend-owned network: it accepts one shape
// negotiation and then runs inference on planar CHW tensors.
//
// # Registry
//
// Backends register a factory under an identifier, usually from an init
// function of their package:
//
//	func init() {
//	    dnn.RegisterBackend("native", func() dnn.Backend { return NewBackend() })
//	}
//
// The stage resolves the configured identifier once at construction:
//
//	backend, err := dnn.Resolve("native")
//	if errors.Is(err, dnn.ErrBackendNotFound) {
//	    // fatal configuration error
//	}
//
// # Model Handles
//
// [Handle] wraps a loaded model and enforces the lifecycle uniformly across
// backends:
//
//	h, err := dnn.Load(backend, "model.yaml")     // ErrModelLoad
//	err = h.Negotiate(desc, "x", []string{"y"})    // ErrShapeNegotiation, once only
//	out, err := h.Infer(ctx, input)                // ErrInference
//	_ = h.Release()                                // idempotent
//
// Inference failures are the only recoverable class. Load and negotiation
// failures are fatal to the stage that owns the handle.
//
// Handles record the blake2b-256 digest of the model file so logs can tie a
// processed stream to the exact model revision.
//
// # Tensors
//
// Tensors are planar CHW float32 blocks. [DataType] describes the sample
// domain: Float32 samples are normalized to [0,1], Uint8 samples carry raw
// 8-bit values.
package dnn
