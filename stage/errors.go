package stage

import (
	"errors"
	"fmt"

	"github.com/opd-ai/residual/dnn"
	"github.com/opd-ai/residual/residual"
)

// Sentinel errors for stage operations.
// These errors enable reliable error classification using errors.Is().

// Setup errors. All of them are fatal to the stage.
var (
	// ErrConfiguration indicates a missing model, an unknown backend or an invalid option.
	ErrConfiguration = errors.New("invalid stage configuration")

	// ErrUnsupportedFormat indicates a stream the stage cannot process,
	// such as a pixel format without exactly three planes.
	ErrUnsupportedFormat = errors.New("unsupported stream format")

	// ErrGeometryChanged indicates a frame whose geometry differs from the negotiated one.
	ErrGeometryChanged = fmt.Errorf("%w: stream geometry changed", ErrUnsupportedFormat)
)

// Lifecycle errors.
var (
	// ErrClosed indicates use of a stage after Close.
	ErrClosed = errors.New("stage is closed")

	// ErrNilFrame indicates a nil frame passed to FilterFrame.
	ErrNilFrame = errors.New("frame cannot be nil")
)

// Errors re-exported from the packages the stage drives, so callers can
// classify every stage error through this package.
var (
	ErrModelLoad        = dnn.ErrModelLoad
	ErrShapeNegotiation = dnn.ErrShapeNegotiation
	ErrInference        = dnn.ErrInference
	ErrBackendNotFound  = dnn.ErrBackendNotFound
	ErrAllocation       = residual.ErrAllocation
)
