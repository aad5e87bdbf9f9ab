// Package isosurface extracts triangle meshes from volumetric scalar
// fields using the marching cubes algorithm.
//
// The primary entry point is Extract, which meshes a binary mask at the
// half-way isovalue with a configurable sampling stride. ExtractGrid is
// the general form over an arbitrary float field. Both return an indexed
// mesh: vertices shared between neighboring cells are emitted once, keyed
// by the lattice edge they sit on, so the output is a connected surface
// rather than per-cell triangle soup.
package isosurface

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"lungseg3d/internal/models"
)

// edgeCorners lists the two cell corners joined by each of the 12 edges.
var edgeCorners = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// cornerOffsets gives each corner's position relative to the cell origin,
// in units of the sampling step, matching the table convention.
var cornerOffsets = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// Extract runs marching cubes over a binary mask at isovalue 0.5.
// step is the sampling stride in voxels: 1 samples every voxel, k samples
// every k-th voxel along each axis. A non-positive step is a
// configuration error. An all-false mask, or a step too large for any
// full cell to exist, yields an empty mesh.
func Extract(mask *models.BinaryMask, step int) (*models.Mesh, error) {
	if mask == nil {
		return nil, fmt.Errorf("extract: mask is nil")
	}
	if step < 1 {
		return nil, fmt.Errorf("extract: step must be a positive integer, got %d", step)
	}

	sliceSize := mask.Rows * mask.Cols
	value := func(x, y, z int) float64 {
		if mask.Data[z*sliceSize+y*mask.Cols+x] {
			return 1
		}
		return 0
	}
	return march(value, mask.Cols, mask.Rows, mask.Depth, 0.5, step), nil
}

// ExtractGrid runs marching cubes over a dense float field stored in
// (z, y, x) row-major order, extracting the surface at isoLevel.
func ExtractGrid(data []float64, width, height, depth int, isoLevel float64, step int) (*models.Mesh, error) {
	if step < 1 {
		return nil, fmt.Errorf("extract: step must be a positive integer, got %d", step)
	}
	if len(data) != width*height*depth {
		return nil, fmt.Errorf("extract: data length %d does not match %dx%dx%d",
			len(data), width, height, depth)
	}

	value := func(x, y, z int) float64 {
		return data[z*width*height+y*width+x]
	}
	return march(value, width, height, depth, isoLevel, step), nil
}

// cellVertex is a surface point tagged with the lattice edge it lies on,
// used to merge shared vertices deterministically across worker slabs.
type cellVertex struct {
	key [4]int32 // lower lattice endpoint (x, y, z) and edge axis
	pos [3]float64
}

// march sweeps the sampled lattice cell by cell. Cell layers are
// processed in parallel slabs; the merge walks the slabs in order, so the
// output is identical to a sequential sweep.
func march(value func(x, y, z int) float64, width, height, depth int, isoLevel float64, step int) *models.Mesh {
	mesh := &models.Mesh{}

	// Number of sample points per axis at this stride
	nx := sampleCount(width, step)
	ny := sampleCount(height, step)
	nz := sampleCount(depth, step)
	if nx < 2 || ny < 2 || nz < 2 {
		// No full cell fits in the volume
		return mesh
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > nz-1 {
		numWorkers = nz - 1
	}
	layersPerWorker := (nz - 1 + numWorkers - 1) / numWorkers

	results := make([][]cellVertex, numWorkers)
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()

			startK := workerID * layersPerWorker
			endK := (workerID + 1) * layersPerWorker
			if endK > nz-1 {
				endK = nz - 1
			}

			var out []cellVertex
			for k := startK; k < endK; k++ {
				for j := 0; j < ny-1; j++ {
					for i := 0; i < nx-1; i++ {
						out = marchCell(value, i, j, k, step, isoLevel, out)
					}
				}
			}
			results[workerID] = out
		}(w)
	}

	wg.Wait()

	// Deterministic merge with shared-vertex dedup
	index := make(map[[4]int32]int)
	for _, out := range results {
		for t := 0; t+2 < len(out); t += 3 {
			var face [3]int
			for v := 0; v < 3; v++ {
				cv := out[t+v]
				idx, ok := index[cv.key]
				if !ok {
					idx = len(mesh.Vertices)
					index[cv.key] = idx
					mesh.Vertices = append(mesh.Vertices, cv.pos)
				}
				face[v] = idx
			}
			mesh.Faces = append(mesh.Faces, face)
		}
	}

	return mesh
}

// marchCell classifies one cell and appends its triangle vertices, three
// per triangle, to out.
func marchCell(value func(x, y, z int) float64, i, j, k, step int, isoLevel float64, out []cellVertex) []cellVertex {
	var corner [8][3]int
	var val [8]float64
	cubeIndex := 0

	for c := 0; c < 8; c++ {
		x := (i + cornerOffsets[c][0]) * step
		y := (j + cornerOffsets[c][1]) * step
		z := (k + cornerOffsets[c][2]) * step
		corner[c] = [3]int{x, y, z}
		val[c] = value(x, y, z)
		if val[c] < isoLevel {
			cubeIndex |= 1 << c
		}
	}

	edges := edgeTable[cubeIndex]
	if edges == 0 {
		return out
	}

	// Interpolated surface point on each crossed edge
	var onEdge [12]cellVertex
	for e := 0; e < 12; e++ {
		if edges&(1<<e) == 0 {
			continue
		}
		a, b := edgeCorners[e][0], edgeCorners[e][1]
		onEdge[e] = interpolateEdge(corner[a], corner[b], val[a], val[b], isoLevel)
	}

	for _, e := range triTable[cubeIndex] {
		out = append(out, onEdge[e])
	}
	return out
}

// interpolateEdge places a vertex where the field crosses the isovalue
// between two lattice points, keyed by the canonical (lower endpoint,
// axis) identity of the edge.
func interpolateEdge(p1, p2 [3]int, v1, v2 float64, isoLevel float64) cellVertex {
	// Canonical key: the endpoint with the smaller coordinates plus the
	// axis along which the edge runs
	lo, hi := p1, p2
	flipped := false
	if p2[0] < p1[0] || p2[1] < p1[1] || p2[2] < p1[2] {
		lo, hi = p2, p1
		flipped = true
	}
	axis := int32(0)
	switch {
	case hi[1] != lo[1]:
		axis = 1
	case hi[2] != lo[2]:
		axis = 2
	}
	key := [4]int32{int32(lo[0]), int32(lo[1]), int32(lo[2]), axis}

	const eps = 1e-9
	var t float64
	switch {
	case math.Abs(isoLevel-v1) < eps:
		t = 0
	case math.Abs(isoLevel-v2) < eps:
		t = 1
	case math.Abs(v1-v2) < eps:
		t = 0.5
	default:
		t = (isoLevel - v1) / (v2 - v1)
	}
	if flipped {
		t = 1 - t
	}

	pos := [3]float64{
		float64(lo[0]) + t*float64(hi[0]-lo[0]),
		float64(lo[1]) + t*float64(hi[1]-lo[1]),
		float64(lo[2]) + t*float64(hi[2]-lo[2]),
	}
	return cellVertex{key: key, pos: pos}
}

// sampleCount returns how many lattice points a stride of step places
// along an axis of the given length.
func sampleCount(length, step int) int {
	if length < 1 {
		return 0
	}
	return (length-1)/step + 1
}
