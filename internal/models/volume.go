package models

import (
	"fmt"
)

// Volume represents a calibrated CT scan as a dense 3D intensity grid.
// Voxel intensities are in Hounsfield units (HU), where 0 is water and
// roughly -1000 is air, so a single threshold works across scans.
type Volume struct {
	// Data is the 3D volume data as a 1D array in (depth, rows, cols)
	// row-major order: Data[z*Rows*Cols + y*Cols + x]
	Data []float64

	// Depth is the number of slices along the scan axis
	Depth int

	// Rows is the number of rows in each slice
	Rows int

	// Cols is the number of columns in each slice
	Cols int

	// Spacing is the physical voxel size in mm along the
	// (depth, row, col) axes
	Spacing [3]float64
}

// NewVolume creates a volume with the given shape and spacing, allocating
// a zeroed data buffer.
func NewVolume(depth, rows, cols int, spacing [3]float64) (*Volume, error) {
	if depth <= 0 || rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid volume shape %dx%dx%d", depth, rows, cols)
	}
	for _, s := range spacing {
		if s <= 0 {
			return nil, fmt.Errorf("spacing values must be positive, got %v", spacing)
		}
	}
	return &Volume{
		Data:    make([]float64, depth*rows*cols),
		Depth:   depth,
		Rows:    rows,
		Cols:    cols,
		Spacing: spacing,
	}, nil
}

// Validate checks the internal consistency of the volume.
func (v *Volume) Validate() error {
	if v.Depth <= 0 || v.Rows <= 0 || v.Cols <= 0 {
		return fmt.Errorf("invalid volume shape %dx%dx%d", v.Depth, v.Rows, v.Cols)
	}
	if len(v.Data) != v.Depth*v.Rows*v.Cols {
		return fmt.Errorf("volume data length %d does not match shape %dx%dx%d",
			len(v.Data), v.Depth, v.Rows, v.Cols)
	}
	for _, s := range v.Spacing {
		if s <= 0 {
			return fmt.Errorf("spacing values must be positive, got %v", v.Spacing)
		}
	}
	return nil
}

// Index returns the linear offset of voxel (z, y, x).
func (v *Volume) Index(z, y, x int) int {
	return z*v.Rows*v.Cols + y*v.Cols + x
}

// At returns the intensity of voxel (z, y, x).
func (v *Volume) At(z, y, x int) float64 {
	return v.Data[v.Index(z, y, x)]
}

// NumVoxels returns the total voxel count.
func (v *Volume) NumVoxels() int {
	return v.Depth * v.Rows * v.Cols
}

// BinaryMask marks a subset of a volume's voxels. Its shape always equals
// the shape of the volume it was derived from.
type BinaryMask struct {
	// Data is the selection flag per voxel, same ordering as Volume.Data
	Data []bool

	// Depth, Rows, Cols are the mask dimensions
	Depth, Rows, Cols int
}

// NewMask creates an all-false mask with the same shape as the volume.
func NewMask(v *Volume) *BinaryMask {
	return &BinaryMask{
		Data:  make([]bool, v.NumVoxels()),
		Depth: v.Depth,
		Rows:  v.Rows,
		Cols:  v.Cols,
	}
}

// Index returns the linear offset of voxel (z, y, x).
func (m *BinaryMask) Index(z, y, x int) int {
	return z*m.Rows*m.Cols + y*m.Cols + x
}

// At reports whether voxel (z, y, x) is selected.
func (m *BinaryMask) At(z, y, x int) bool {
	return m.Data[m.Index(z, y, x)]
}

// NumVoxels returns the total voxel count.
func (m *BinaryMask) NumVoxels() int {
	return m.Depth * m.Rows * m.Cols
}

// NumSelected returns the number of selected voxels.
func (m *BinaryMask) NumSelected() int {
	count := 0
	for _, b := range m.Data {
		if b {
			count++
		}
	}
	return count
}

// SameShape reports whether the mask shape matches the volume shape.
func (m *BinaryMask) SameShape(v *Volume) bool {
	return m.Depth == v.Depth && m.Rows == v.Rows && m.Cols == v.Cols
}

// CheckShape returns a precondition error when the mask shape does not
// match the volume it is supposed to describe.
func (m *BinaryMask) CheckShape(v *Volume) error {
	if !m.SameShape(v) {
		return fmt.Errorf("mask shape %dx%dx%d does not match volume shape %dx%dx%d",
			m.Depth, m.Rows, m.Cols, v.Depth, v.Rows, v.Cols)
	}
	return nil
}

// Mesh is an indexed triangle surface. Vertices are in voxel-index space;
// physical rescaling and recentering happen downstream (see pkg/stl).
type Mesh struct {
	// Vertices are 3D points in (x, y, z) voxel coordinates
	Vertices [][3]float64

	// Faces are triples of indices into Vertices, wound so that the
	// cross product of the edge vectors points out of the surface
	Faces [][3]int
}

// Validate checks that every face references valid vertices.
func (m *Mesh) Validate() error {
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(m.Vertices) {
				return fmt.Errorf("face %d references vertex %d, have %d vertices",
					i, idx, len(m.Vertices))
			}
		}
	}
	return nil
}
