package loader

import (
	"testing"
)

// uniformSlice builds a parsed slice whose pixels all hold value.
func uniformSlice(rows, cols int, position, value float64) dicomSlice {
	pixels := make([]float64, rows*cols)
	for i := range pixels {
		pixels[i] = value
	}
	return dicomSlice{
		pixels:   pixels,
		rows:     rows,
		cols:     cols,
		position: position,
		spacing:  [2]float64{0.7, 0.7},
	}
}

// TestToHU verifies the stored-value to Hounsfield calibration, including
// the sign correction for two's-complement data read as unsigned.
func TestToHU(t *testing.T) {
	cases := []struct {
		name       string
		raw        int
		slope      float64
		intercept  float64
		bitsStored int
		signed     bool
		want       float64
	}{
		{"unsigned passthrough", 1000, 1, 0, 16, false, 1000},
		{"intercept shift", 0, 1, -1024, 16, false, -1024},
		{"slope applied", 500, 2, -1024, 16, false, -24},
		{"signed positive unchanged", 400, 1, 0, 16, true, 400},
		{"signed wraparound", 65536 - 400, 1, 0, 16, true, -400},
		{"signed wraparound with intercept", 65536 - 2000, 1, -1024, 16, true, -3024},
		{"12-bit signed wraparound", 4096 - 100, 1, 0, 12, true, -100},
		{"12-bit large unsigned kept", 4000, 1, 0, 12, false, 4000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := toHU(tc.raw, tc.slope, tc.intercept, tc.bitsStored, tc.signed)
			if got != tc.want {
				t.Errorf("toHU(%d, %f, %f, %d, %v) = %f, expected %f",
					tc.raw, tc.slope, tc.intercept, tc.bitsStored, tc.signed, got, tc.want)
			}
		})
	}
}

// TestAssembleVolume verifies slice ordering, thickness inference, and
// stacking into the (depth, row, col) layout.
func TestAssembleVolume(t *testing.T) {
	// Slices arrive out of order, one intensity per slice so the stacking
	// order is observable
	slices := []dicomSlice{
		uniformSlice(2, 3, -120.0, 300),
		uniformSlice(2, 3, -125.0, 100),
		uniformSlice(2, 3, -122.5, 200),
	}

	vol, err := assembleVolume(slices)
	if err != nil {
		t.Fatalf("assembleVolume failed: %v", err)
	}

	if vol.Depth != 3 || vol.Rows != 2 || vol.Cols != 3 {
		t.Fatalf("Expected shape 3x2x3, got %dx%dx%d", vol.Depth, vol.Rows, vol.Cols)
	}

	// Stacked in ascending position order: -125, -122.5, -120
	for z, want := range []float64{100, 200, 300} {
		if got := vol.At(z, 1, 2); got != want {
			t.Errorf("Expected %f at slice %d, got %f", want, z, got)
		}
	}

	// Thickness from adjacent sorted positions, pixel spacing from metadata
	want := [3]float64{2.5, 0.7, 0.7}
	if vol.Spacing != want {
		t.Errorf("Expected spacing %v, got %v", want, vol.Spacing)
	}
}

// TestAssembleVolumeErrors verifies rejection of inconsistent series.
func TestAssembleVolumeErrors(t *testing.T) {
	t.Run("mismatched dimensions", func(t *testing.T) {
		slices := []dicomSlice{
			uniformSlice(2, 3, 0, 0),
			uniformSlice(3, 3, 2.5, 0),
		}
		if _, err := assembleVolume(slices); err == nil {
			t.Error("Expected error for mismatched slice dimensions, got nil")
		}
	})

	t.Run("single slice has no thickness", func(t *testing.T) {
		slices := []dicomSlice{uniformSlice(2, 2, 0, 0)}
		if _, err := assembleVolume(slices); err == nil {
			t.Error("Expected error for unknown slice thickness, got nil")
		}
	})

	t.Run("duplicate positions", func(t *testing.T) {
		slices := []dicomSlice{
			uniformSlice(2, 2, 5, 0),
			uniformSlice(2, 2, 5, 0),
		}
		if _, err := assembleVolume(slices); err == nil {
			t.Error("Expected error for zero slice spacing, got nil")
		}
	})

	t.Run("missing pixel spacing", func(t *testing.T) {
		a := uniformSlice(2, 2, 0, 0)
		b := uniformSlice(2, 2, 2.5, 0)
		a.spacing = [2]float64{}
		b.spacing = [2]float64{}
		if _, err := assembleVolume([]dicomSlice{a, b}); err == nil {
			t.Error("Expected error for missing pixel spacing, got nil")
		}
	})
}
