package residual

import "errors"

var (
	// ErrAllocation indicates a plane buffer could not be obtained.
	ErrAllocation = errors.New("plane buffer allocation failed")
	// ErrAlreadyAllocated indicates Allocate on a manager that holds buffers.
	ErrAlreadyAllocated = errors.New("plane buffers already allocated")
	// ErrNotAllocated indicates use of a manager before Allocate.
	ErrNotAllocated = errors.New("plane buffers not allocated")
)
