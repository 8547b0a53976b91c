package dnn

import "errors"

// Sentinel errors for dnn operations.
// These errors enable reliable error classification using errors.Is().

// Registry errors.
var (
	// ErrBackendNotFound indicates an identifier with no registered backend.
	ErrBackendNotFound = errors.New("backend not found")
)

// Model lifecycle errors.
var (
	// ErrModelLoad indicates the backend could not instantiate the model.
	ErrModelLoad = errors.New("model load failed")

	// ErrShapeNegotiation indicates the backend rejected the tensor shape.
	ErrShapeNegotiation = errors.New("shape negotiation failed")

	// ErrInference indicates a backend failure while running the model.
	ErrInference = errors.New("inference failed")

	// ErrNotNegotiated indicates inference was requested before negotiation.
	ErrNotNegotiated = errors.New("tensor shape not negotiated")

	// ErrAlreadyNegotiated indicates a second negotiation on the same handle.
	ErrAlreadyNegotiated = errors.New("tensor shape already negotiated")

	// ErrModelReleased indicates use of a handle after Release.
	ErrModelReleased = errors.New("model already released")
)
