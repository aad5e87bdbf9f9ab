// Package stl converts extracted surfaces into triangle soup and writes
// binary STL files. It owns the physical-unit post-processing step:
// meshes come out of the extractor in voxel-index space and are rescaled
// and recentered here.
package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"lungseg3d/internal/models"
	"lungseg3d/pkg/isosurface"
)

// Triangle is a single STL facet.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// MarchingCubes generates triangle soup from a dense scalar field stored
// in (z, y, x) row-major order. It wraps the shared isosurface extractor
// with a per-axis output scale.
type MarchingCubes struct {
	data     []float64
	width    int
	height   int
	depth    int
	isoLevel float64
	scale    [3]float32
}

// NewMarchingCubes creates a generator for the given field and isovalue.
func NewMarchingCubes(data []float64, width, height, depth int, isoLevel float64) *MarchingCubes {
	return &MarchingCubes{
		data:     data,
		width:    width,
		height:   height,
		depth:    depth,
		isoLevel: isoLevel,
		scale:    [3]float32{1, 1, 1},
	}
}

// SetScale sets the per-axis scale applied to output vertices, typically
// the physical voxel spacing in mm.
func (mc *MarchingCubes) SetScale(x, y, z float32) {
	mc.scale = [3]float32{x, y, z}
}

// GenerateTriangles extracts the isosurface and returns it as scaled
// triangles with outward-facing normals.
func (mc *MarchingCubes) GenerateTriangles() []Triangle {
	mesh, err := isosurface.ExtractGrid(mc.data, mc.width, mc.height, mc.depth, mc.isoLevel, 1)
	if err != nil {
		// Only reachable with inconsistent dimensions; produce no geometry
		return nil
	}
	scale := [3]float64{float64(mc.scale[0]), float64(mc.scale[1]), float64(mc.scale[2])}
	return TrianglesFromMesh(mesh, scale, [3]float64{})
}

// TrianglesFromMesh converts an indexed mesh to triangle soup, applying a
// per-axis scale and then a translation to each vertex. Normals are
// derived from the winding by cross product.
func TrianglesFromMesh(mesh *models.Mesh, scale, offset [3]float64) []Triangle {
	triangles := make([]Triangle, 0, len(mesh.Faces))

	transform := func(v [3]float64) [3]float64 {
		return [3]float64{
			v[0]*scale[0] + offset[0],
			v[1]*scale[1] + offset[1],
			v[2]*scale[2] + offset[2],
		}
	}

	for _, f := range mesh.Faces {
		a := transform(mesh.Vertices[f[0]])
		b := transform(mesh.Vertices[f[1]])
		c := transform(mesh.Vertices[f[2]])

		n := normal(a, b, c)
		triangles = append(triangles, Triangle{
			Normal:  n,
			Vertex1: toFloat32(a),
			Vertex2: toFloat32(b),
			Vertex3: toFloat32(c),
		})
	}

	return triangles
}

// CenterOffset returns the translation that recenters a volume of the
// given shape and spacing on the origin, for use with TrianglesFromMesh.
// Mesh vertices are in (x, y, z) order while the volume shape and spacing
// are in (depth, row, col) order.
func CenterOffset(vol *models.Volume) [3]float64 {
	return [3]float64{
		-float64(vol.Cols) * vol.Spacing[2] / 2,
		-float64(vol.Rows) * vol.Spacing[1] / 2,
		-float64(vol.Depth) * vol.Spacing[0] / 2,
	}
}

// normal computes the unit normal of a triangle from its winding.
func normal(a, b, c [3]float64) [3]float32 {
	ux, uy, uz := b[0]-a[0], b[1]-a[1], b[2]-a[2]
	vx, vy, vz := c[0]-a[0], c[1]-a[1], c[2]-a[2]

	nx := uy*vz - uz*vy
	ny := uz*vx - ux*vz
	nz := ux*vy - uy*vx

	mag := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if mag > 0 {
		nx /= mag
		ny /= mag
		nz /= mag
	}
	return [3]float32{float32(nx), float32(ny), float32(nz)}
}

func toFloat32(v [3]float64) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

// SaveToSTL writes triangles to a binary STL file: an 80-byte header, a
// uint32 facet count, then 50 bytes per facet.
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	var header [80]byte
	copy(header[:], "Binary STL generated by lungseg3d")
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write STL header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return fmt.Errorf("failed to write triangle count: %w", err)
	}

	for i, t := range triangles {
		for _, vec := range [][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
				return fmt.Errorf("failed to write triangle %d: %w", i, err)
			}
		}
		// Attribute byte count, unused
		if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
			return fmt.Errorf("failed to write triangle %d: %w", i, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush STL file: %w", err)
	}

	return nil
}
