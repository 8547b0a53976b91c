package native

import "errors"

var (
	// ErrInvalidModel indicates a model description that fails validation.
	ErrInvalidModel = errors.New("invalid native model")
	// ErrModelFreed indicates use of a model after FreeModel.
	ErrModelFreed = errors.New("native model has been freed")
	// ErrForeignModel indicates a model that was not loaded by this backend.
	ErrForeignModel = errors.New("model was not loaded by the native backend")
)
