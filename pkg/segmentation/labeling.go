package segmentation

// labelComponents assigns an integer component id to every true voxel of
// the candidate array under 6-connectivity, using an explicit-stack flood
// fill over linear offsets. Id 0 is reserved for background (false
// voxels). It returns the per-voxel labels and the number of components.
func labelComponents(candidate []bool, depth, rows, cols int) ([]int32, int) {
	labels := make([]int32, len(candidate))
	sliceSize := rows * cols

	var stack []int
	next := int32(0)

	for seed, isCandidate := range candidate {
		if !isCandidate || labels[seed] != 0 {
			continue
		}
		next++
		labels[seed] = next
		stack = append(stack[:0], seed)

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			z := idx / sliceSize
			rem := idx - z*sliceSize
			y := rem / cols
			x := rem - y*cols

			// Visit the six face neighbors
			if x > 0 {
				if n := idx - 1; candidate[n] && labels[n] == 0 {
					labels[n] = next
					stack = append(stack, n)
				}
			}
			if x < cols-1 {
				if n := idx + 1; candidate[n] && labels[n] == 0 {
					labels[n] = next
					stack = append(stack, n)
				}
			}
			if y > 0 {
				if n := idx - cols; candidate[n] && labels[n] == 0 {
					labels[n] = next
					stack = append(stack, n)
				}
			}
			if y < rows-1 {
				if n := idx + cols; candidate[n] && labels[n] == 0 {
					labels[n] = next
					stack = append(stack, n)
				}
			}
			if z > 0 {
				if n := idx - sliceSize; candidate[n] && labels[n] == 0 {
					labels[n] = next
					stack = append(stack, n)
				}
			}
			if z < depth-1 {
				if n := idx + sliceSize; candidate[n] && labels[n] == 0 {
					labels[n] = next
					stack = append(stack, n)
				}
			}
		}
	}

	return labels, int(next)
}

// borderLabels returns, indexed by component id, whether the component has
// at least one voxel on any of the six bounding faces of the volume.
func borderLabels(labels []int32, numLabels, depth, rows, cols int) []bool {
	border := make([]bool, numLabels+1)
	sliceSize := rows * cols

	mark := func(idx int) {
		if l := labels[idx]; l > 0 {
			border[l] = true
		}
	}

	// z = 0 and z = depth-1 faces
	for i := 0; i < sliceSize; i++ {
		mark(i)
		mark((depth-1)*sliceSize + i)
	}

	// y = 0 and y = rows-1 faces
	for z := 0; z < depth; z++ {
		base := z * sliceSize
		for x := 0; x < cols; x++ {
			mark(base + x)
			mark(base + (rows-1)*cols + x)
		}
	}

	// x = 0 and x = cols-1 faces
	for z := 0; z < depth; z++ {
		base := z * sliceSize
		for y := 0; y < rows; y++ {
			mark(base + y*cols)
			mark(base + y*cols + cols - 1)
		}
	}

	return border
}
