// Package limits provides centralized geometry limits for the residual stage.
// This ensures consistent validation across the frame, residual and stage packages.
package limits

import (
	"errors"
	"fmt"
)

const (
	// PlaneCount is the number of color planes the stage accepts.
	// Tensor channels and residual buffers are both fixed to this value.
	PlaneCount = 3

	// MinDimension is the smallest accepted width or height.
	// Residual synthesis leaves a 1-pixel border untouched, so anything
	// narrower than 3 samples has no interior.
	MinDimension = 3

	// MaxDimension is the largest accepted width or height.
	MaxDimension = 16384

	// MaxPlaneSamples is the absolute maximum number of samples in one plane buffer.
	// This prevents memory exhaustion from corrupt geometry.
	MaxPlaneSamples = MaxDimension * MaxDimension
)

var (
	// ErrDimensionTooSmall indicates a width or height below MinDimension
	ErrDimensionTooSmall = errors.New("dimension too small")

	// ErrDimensionTooLarge indicates a width or height above MaxDimension
	ErrDimensionTooLarge = errors.New("dimension too large")

	// ErrPlaneTooLarge indicates a plane sample count above the allowed budget
	ErrPlaneTooLarge = errors.New("plane too large")
)

// ValidateDimension validates a single width or height value.
// Returns an error with context including the actual value and the bound.
func ValidateDimension(name string, value int) error {
	if value < MinDimension {
		return fmt.Errorf("%w: %s %d below minimum %d", ErrDimensionTooSmall, name, value, MinDimension)
	}
	if value > MaxDimension {
		return fmt.Errorf("%w: %s %d exceeds limit %d", ErrDimensionTooLarge, name, value, MaxDimension)
	}
	return nil
}

// ValidateGeometry validates a frame geometry against MinDimension and MaxDimension.
func ValidateGeometry(width, height int) error {
	if err := ValidateDimension("width", width); err != nil {
		return err
	}
	return ValidateDimension("height", height)
}

// ValidatePlaneSamples validates a plane sample count against the given maximum.
// A non-positive count is reported as too small.
func ValidatePlaneSamples(samples, maxSamples int) error {
	if samples <= 0 {
		return fmt.Errorf("%w: plane of %d samples", ErrDimensionTooSmall, samples)
	}
	if samples > maxSamples {
		return fmt.Errorf("%w: %d samples exceeds limit %d", ErrPlaneTooLarge, samples, maxSamples)
	}
	return nil
}
