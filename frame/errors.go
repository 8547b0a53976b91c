package frame

import "errors"

// Sentinel errors for frame operations.
var (
	// ErrUnknownFormat indicates a pixel format name that is not registered.
	ErrUnknownFormat = errors.New("unknown pixel format")

	// ErrInvalidFrame indicates a frame whose planes do not match its format and geometry.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrGeometryMismatch indicates two frames that cannot be copied onto each other.
	ErrGeometryMismatch = errors.New("frame geometry mismatch")

	// ErrReleased indicates use of a frame reference that was already released.
	ErrReleased = errors.New("frame already released")
)
