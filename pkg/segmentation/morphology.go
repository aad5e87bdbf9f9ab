package segmentation

import (
	"sync"

	"lungseg3d/internal/models"
)

// fillSliceHoles fills enclosed unselected pockets within each axial
// slice, up to maxVoxels per pocket. A pocket is a 4-connected 2D region
// of unselected voxels that does not reach the slice boundary; vessels
// and airway walls inside the lung show up this way. Slices are
// independent, so the pass parallelizes per slice.
func fillSliceHoles(mask *models.BinaryMask, maxVoxels, numCores int) {
	if numCores < 1 {
		numCores = 1
	}

	var wg sync.WaitGroup
	slicesPerCore := (mask.Depth + numCores - 1) / numCores

	for c := 0; c < numCores; c++ {
		wg.Add(1)

		go func(coreID int) {
			defer wg.Done()

			startZ := coreID * slicesPerCore
			endZ := (coreID + 1) * slicesPerCore
			if endZ > mask.Depth {
				endZ = mask.Depth
			}

			// Reusable per-worker scratch buffers
			visited := make([]bool, mask.Rows*mask.Cols)
			var stack, region []int

			for z := startZ; z < endZ; z++ {
				fillHolesInSlice(mask, z, maxVoxels, visited, &stack, &region)
			}
		}(c)
	}

	wg.Wait()
}

// fillHolesInSlice runs the 2D flood fill for a single slice. The scratch
// buffers are owned by the caller so they can be reused across slices.
func fillHolesInSlice(mask *models.BinaryMask, z, maxVoxels int, visited []bool, stack, region *[]int) {
	rows, cols := mask.Rows, mask.Cols
	base := z * rows * cols

	for i := range visited {
		visited[i] = false
	}

	for seed := 0; seed < rows*cols; seed++ {
		if visited[seed] || mask.Data[base+seed] {
			continue
		}

		// Flood fill this unselected region with 4-connectivity,
		// recording whether it touches the slice boundary
		*stack = append((*stack)[:0], seed)
		*region = (*region)[:0]
		visited[seed] = true
		touchesBorder := false

		for len(*stack) > 0 {
			idx := (*stack)[len(*stack)-1]
			*stack = (*stack)[:len(*stack)-1]
			*region = append(*region, idx)

			y := idx / cols
			x := idx - y*cols
			if x == 0 || x == cols-1 || y == 0 || y == rows-1 {
				touchesBorder = true
			}

			if x > 0 {
				if n := idx - 1; !visited[n] && !mask.Data[base+n] {
					visited[n] = true
					*stack = append(*stack, n)
				}
			}
			if x < cols-1 {
				if n := idx + 1; !visited[n] && !mask.Data[base+n] {
					visited[n] = true
					*stack = append(*stack, n)
				}
			}
			if y > 0 {
				if n := idx - cols; !visited[n] && !mask.Data[base+n] {
					visited[n] = true
					*stack = append(*stack, n)
				}
			}
			if y < rows-1 {
				if n := idx + cols; !visited[n] && !mask.Data[base+n] {
					visited[n] = true
					*stack = append(*stack, n)
				}
			}
		}

		if !touchesBorder && len(*region) <= maxVoxels {
			for _, idx := range *region {
				mask.Data[base+idx] = true
			}
		}
	}
}

// dilate grows the mask by one 6-neighborhood pass. Voxels whose air
// component was border-connected are never claimed, which keeps the mask
// from reconnecting to the discarded ambient air. The scan runs over a
// snapshot of the mask, so the result is independent of traversal order.
func dilate(mask *models.BinaryMask, labels []int32, border []bool, numCores int) {
	if numCores < 1 {
		numCores = 1
	}

	depth, rows, cols := mask.Depth, mask.Rows, mask.Cols
	sliceSize := rows * cols

	snapshot := make([]bool, len(mask.Data))
	copy(snapshot, mask.Data)

	var wg sync.WaitGroup
	additions := make([][]int, numCores)
	slicesPerCore := (depth + numCores - 1) / numCores

	for c := 0; c < numCores; c++ {
		wg.Add(1)

		go func(coreID int) {
			defer wg.Done()

			startZ := coreID * slicesPerCore
			endZ := (coreID + 1) * slicesPerCore
			if endZ > depth {
				endZ = depth
			}

			var local []int
			for z := startZ; z < endZ; z++ {
				for y := 0; y < rows; y++ {
					for x := 0; x < cols; x++ {
						idx := z*sliceSize + y*cols + x
						if snapshot[idx] {
							continue
						}
						if l := labels[idx]; l > 0 && border[l] {
							continue
						}
						if hasSelectedNeighbor(snapshot, idx, x, y, z, cols, rows, depth, sliceSize) {
							local = append(local, idx)
						}
					}
				}
			}
			additions[coreID] = local
		}(c)
	}

	wg.Wait()

	for _, local := range additions {
		for _, idx := range local {
			mask.Data[idx] = true
		}
	}
}

// hasSelectedNeighbor reports whether any of the six face neighbors of
// the voxel is selected in the snapshot.
func hasSelectedNeighbor(snapshot []bool, idx, x, y, z, cols, rows, depth, sliceSize int) bool {
	if x > 0 && snapshot[idx-1] {
		return true
	}
	if x < cols-1 && snapshot[idx+1] {
		return true
	}
	if y > 0 && snapshot[idx-cols] {
		return true
	}
	if y < rows-1 && snapshot[idx+cols] {
		return true
	}
	if z > 0 && snapshot[idx-sliceSize] {
		return true
	}
	if z < depth-1 && snapshot[idx+sliceSize] {
		return true
	}
	return false
}
