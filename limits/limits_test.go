package limits

import (
	"errors"
	"testing"
)

// TestValidateGeometry covers the accepted range and both bounds.
func TestValidateGeometry(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		height  int
		wantErr error
	}{
		{"minimum", MinDimension, MinDimension, nil},
		{"typical", 640, 480, nil},
		{"maximum", MaxDimension, MaxDimension, nil},
		{"width_too_small", 2, 480, ErrDimensionTooSmall},
		{"height_too_small", 640, 0, ErrDimensionTooSmall},
		{"negative", -4, 4, ErrDimensionTooSmall},
		{"width_too_large", MaxDimension + 1, 480, ErrDimensionTooLarge},
		{"height_too_large", 640, MaxDimension + 2, ErrDimensionTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeometry(tt.width, tt.height)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateGeometry(%d, %d) = %v, want nil", tt.width, tt.height, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateGeometry(%d, %d) = %v, want %v", tt.width, tt.height, err, tt.wantErr)
			}
		})
	}
}

// TestValidateDimensionContext verifies the error message names the offending dimension.
func TestValidateDimensionContext(t *testing.T) {
	err := ValidateDimension("height", 1)
	if err == nil {
		t.Fatal("expected error for height 1")
	}
	want := "dimension too small: height 1 below minimum 3"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

// TestValidatePlaneSamples checks empty, valid and oversized planes.
func TestValidatePlaneSamples(t *testing.T) {
	if err := ValidatePlaneSamples(16, MaxPlaneSamples); err != nil {
		t.Errorf("16 samples: unexpected error %v", err)
	}
	if err := ValidatePlaneSamples(0, MaxPlaneSamples); !errors.Is(err, ErrDimensionTooSmall) {
		t.Errorf("0 samples: got %v, want ErrDimensionTooSmall", err)
	}
	if err := ValidatePlaneSamples(17, 16); !errors.Is(err, ErrPlaneTooLarge) {
		t.Errorf("17 of 16 samples: got %v, want ErrPlaneTooLarge", err)
	}
}

// TestMaxPlaneSamplesCoversMaxGeometry guards the relation between the constants.
func TestMaxPlaneSamplesCoversMaxGeometry(t *testing.T) {
	if MaxPlaneSamples != MaxDimension*MaxDimension {
		t.Errorf("MaxPlaneSamples = %d, want %d", MaxPlaneSamples, MaxDimension*MaxDimension)
	}
	if PlaneCount != 3 {
		t.Errorf("PlaneCount = %d, want 3", PlaneCount)
	}
}
