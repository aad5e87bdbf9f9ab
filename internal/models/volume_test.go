package models

import (
	"testing"
)

// TestNewVolume verifies allocation and shape validation
func TestNewVolume(t *testing.T) {
	vol, err := NewVolume(4, 5, 6, [3]float64{2.5, 0.7, 0.7})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}

	if len(vol.Data) != 4*5*6 {
		t.Errorf("Expected data length %d, got %d", 4*5*6, len(vol.Data))
	}
	if vol.NumVoxels() != 120 {
		t.Errorf("Expected 120 voxels, got %d", vol.NumVoxels())
	}
	if err := vol.Validate(); err != nil {
		t.Errorf("Fresh volume failed validation: %v", err)
	}

	// Invalid shapes and spacings must be rejected
	if _, err := NewVolume(0, 5, 6, [3]float64{1, 1, 1}); err == nil {
		t.Error("Expected error for zero depth, got nil")
	}
	if _, err := NewVolume(4, -1, 6, [3]float64{1, 1, 1}); err == nil {
		t.Error("Expected error for negative rows, got nil")
	}
	if _, err := NewVolume(4, 5, 6, [3]float64{1, 0, 1}); err == nil {
		t.Error("Expected error for zero spacing, got nil")
	}
}

// TestVolumeIndexing verifies the (depth, row, col) linear layout
func TestVolumeIndexing(t *testing.T) {
	vol, err := NewVolume(3, 4, 5, [3]float64{1, 1, 1})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}

	// Index must walk the data in x-fastest order
	want := 0
	for z := 0; z < vol.Depth; z++ {
		for y := 0; y < vol.Rows; y++ {
			for x := 0; x < vol.Cols; x++ {
				if got := vol.Index(z, y, x); got != want {
					t.Fatalf("Index(%d,%d,%d) = %d, expected %d", z, y, x, got, want)
				}
				want++
			}
		}
	}

	vol.Data[vol.Index(2, 3, 4)] = -700
	if got := vol.At(2, 3, 4); got != -700 {
		t.Errorf("At(2,3,4) = %f, expected -700", got)
	}
}

// TestVolumeValidateMismatch verifies that a shape/data mismatch is caught
func TestVolumeValidateMismatch(t *testing.T) {
	vol, err := NewVolume(2, 2, 2, [3]float64{1, 1, 1})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}

	vol.Data = vol.Data[:7]
	if err := vol.Validate(); err == nil {
		t.Error("Expected validation error for truncated data, got nil")
	}
}

// TestMask verifies mask construction, counting, and shape checks
func TestMask(t *testing.T) {
	vol, err := NewVolume(3, 4, 5, [3]float64{1, 1, 1})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}

	mask := NewMask(vol)
	if !mask.SameShape(vol) {
		t.Error("Fresh mask does not match its source volume shape")
	}
	if n := mask.NumSelected(); n != 0 {
		t.Errorf("Fresh mask has %d selected voxels, expected 0", n)
	}

	mask.Data[mask.Index(1, 2, 3)] = true
	mask.Data[mask.Index(2, 0, 0)] = true
	if n := mask.NumSelected(); n != 2 {
		t.Errorf("Expected 2 selected voxels, got %d", n)
	}
	if !mask.At(1, 2, 3) {
		t.Error("At(1,2,3) = false after selection")
	}

	other, err := NewVolume(3, 4, 4, [3]float64{1, 1, 1})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	if err := mask.CheckShape(other); err == nil {
		t.Error("Expected shape-mismatch error, got nil")
	}
	if err := mask.CheckShape(vol); err != nil {
		t.Errorf("Unexpected shape error for matching volume: %v", err)
	}
}

// TestMeshValidate verifies face index bounds checking
func TestMeshValidate(t *testing.T) {
	mesh := &Mesh{
		Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:    [][3]int{{0, 1, 2}},
	}
	if err := mesh.Validate(); err != nil {
		t.Errorf("Valid mesh failed validation: %v", err)
	}

	mesh.Faces = append(mesh.Faces, [3]int{0, 1, 3})
	if err := mesh.Validate(); err == nil {
		t.Error("Expected error for out-of-range vertex index, got nil")
	}

	mesh.Faces = [][3]int{{-1, 0, 1}}
	if err := mesh.Validate(); err == nil {
		t.Error("Expected error for negative vertex index, got nil")
	}
}
