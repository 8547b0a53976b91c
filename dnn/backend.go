package dnn

import "context"

// Backend is the contract an inference engine satisfies to be pluggable.
// This abstraction allows switching between the local numeric backend, an
// external tensor-graph engine, or a simulation without changing the stage.
type Backend interface {
	// Name returns the registry identifier of the backend
	Name() string

	// LoadModel parses and instantiates the model described at path
	LoadModel(path string) (Model, error)

	// FreeModel releases every resource held by a model this backend loaded
	FreeModel(model Model) error
}

// Model is an opaque backend-owned loaded network.
type Model interface {
	// SetInputOutput fixes the input tensor shape and binds input and output names
	SetInputOutput(input TensorDesc, inputName string, outputNames []string) error

	// Infer runs the network on one input tensor of the negotiated shape and
	// returns one tensor per output name, in order
	Infer(ctx context.Context, input *Tensor) ([]*Tensor, error)
}
