// Package limits provides centralized geometry constants and validation functions
// for the residual stage. This package ensures consistent bounds enforcement across
// frame allocation, tensor negotiation and residual buffer management.
//
// # Geometry Bounds
//
//   - MinDimension (3): the smallest width or height with a non-empty interior.
//     Border-preserving residual synthesis needs at least one interior sample.
//
//   - MaxDimension (16384): the largest width or height accepted from a stream.
//
//   - MaxPlaneSamples: the absolute maximum size of one residual plane buffer.
//     This prevents memory exhaustion when a source reports corrupt geometry.
//
//   - PlaneCount (3): the number of color planes processed. Both the tensor
//     channel count and the number of residual buffers are fixed to it.
//
// # Validation Functions
//
//	err := limits.ValidateGeometry(width, height)
//	if err != nil {
//	    // ErrDimensionTooSmall or ErrDimensionTooLarge
//	}
//
// For buffer sizes, use ValidatePlaneSamples:
//
//	err := limits.ValidatePlaneSamples(width*height, limits.MaxPlaneSamples)
package limits
