// Package segmentation isolates lung parenchyma in a calibrated CT volume.
//
// The algorithm follows the classic threshold-and-label pipeline: voxels
// below an air threshold are labeled into 6-connected 3D components,
// components touching the volume boundary are discarded as ambient air,
// and the two largest interior components (left and right lung) form the
// mask, which is then consolidated by hole filling and a small dilation.
package segmentation

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"lungseg3d/internal/models"
)

// Options holds the tunable segmentation parameters.
type Options struct {
	// AirThresholdHU is the intensity cutoff: voxels strictly below it
	// are air candidates. -320 HU follows the DSB 2017 tutorial pipeline.
	AirThresholdHU float64

	// HoleFillMaxVoxels caps the per-slice size of enclosed non-air
	// pockets that get folded into the mask. Zero disables hole filling.
	HoleFillMaxVoxels int

	// DilationRadius is the number of 6-neighborhood dilation passes.
	// Zero disables dilation.
	DilationRadius int

	// NumCores bounds the parallelism of the consolidation passes.
	// Values below 1 are treated as 1.
	NumCores int
}

// DefaultOptions returns the parameter set used by the CLI defaults.
func DefaultOptions() Options {
	return Options{
		AirThresholdHU:    -320,
		HoleFillMaxVoxels: 512,
		DilationRadius:    1,
		NumCores:          1,
	}
}

// lungComponentCount is the number of interior air components kept as
// lungs: one per side.
const lungComponentCount = 2

// Segment computes the lung air mask for a calibrated volume. It is a
// pure function: the volume is read-only and identical inputs always
// produce identical masks.
//
// Degenerate inputs are not errors: a volume without air candidates, or
// whose only air is connected to the volume boundary, yields an all-false
// mask ("no lungs detected").
func Segment(vol *models.Volume, opts Options) (*models.BinaryMask, error) {
	if vol == nil {
		return nil, fmt.Errorf("segment: volume is nil")
	}
	if err := vol.Validate(); err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}

	// Step 1: threshold into air candidates
	air := make([]bool, vol.NumVoxels())
	for i, v := range vol.Data {
		air[i] = v < opts.AirThresholdHU
	}

	// Step 2: label air candidates into 6-connected 3D components
	labels, numLabels := labelComponents(air, vol.Depth, vol.Rows, vol.Cols)

	// Step 3: collect component ids present on any of the six bounding
	// faces; those are ambient air, excluded regardless of size
	border := borderLabels(labels, numLabels, vol.Depth, vol.Rows, vol.Cols)

	// Step 4: rank interior components by voxel count and keep the two
	// largest as the lung mask
	counts := make([]int, numLabels+1)
	for _, l := range labels {
		if l > 0 {
			counts[l]++
		}
	}
	var interior []int32
	for l := int32(1); l <= int32(numLabels); l++ {
		if !border[l] && counts[l] > 0 {
			interior = append(interior, l)
		}
	}
	sort.Slice(interior, func(i, j int) bool {
		if counts[interior[i]] != counts[interior[j]] {
			return counts[interior[i]] > counts[interior[j]]
		}
		// Tie-break on id so the selection is deterministic
		return interior[i] < interior[j]
	})
	if len(interior) > lungComponentCount {
		interior = interior[:lungComponentCount]
	}

	mask := models.NewMask(vol)
	selected := make([]bool, numLabels+1)
	for _, l := range interior {
		selected[l] = true
	}
	for i, l := range labels {
		if l > 0 && selected[l] {
			mask.Data[i] = true
		}
	}

	// Step 5: consolidate. Both passes are structure-preserving: hole
	// filling only claims regions enclosed within a slice, and dilation
	// refuses to grow into border-connected air, so the mask can never
	// reconnect to the discarded ambient component.
	if opts.HoleFillMaxVoxels > 0 {
		fillSliceHoles(mask, opts.HoleFillMaxVoxels, opts.NumCores)
	}
	for i := 0; i < opts.DilationRadius; i++ {
		dilate(mask, labels, border, opts.NumCores)
	}

	return mask, nil
}

// Stats summarizes a segmentation result for reporting.
type Stats struct {
	// SelectedVoxels is the number of voxels in the mask
	SelectedVoxels int

	// VolumeML is the physical volume of the mask in milliliters
	VolumeML float64

	// MeanHU and StdDevHU describe the intensity distribution of the
	// selected region
	MeanHU   float64
	StdDevHU float64
}

// ComputeStats derives summary statistics for a mask over its source
// volume. The mask must have been produced from a volume of the same
// shape; a mismatch is a contract violation.
func ComputeStats(vol *models.Volume, mask *models.BinaryMask) (Stats, error) {
	if err := mask.CheckShape(vol); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}

	var values []float64
	for i, sel := range mask.Data {
		if sel {
			values = append(values, vol.Data[i])
		}
	}

	s := Stats{SelectedVoxels: len(values)}
	if len(values) == 0 {
		return s, nil
	}

	voxelML := vol.Spacing[0] * vol.Spacing[1] * vol.Spacing[2] / 1000.0
	s.VolumeML = float64(len(values)) * voxelML
	s.MeanHU = stat.Mean(values, nil)
	if len(values) > 1 {
		s.StdDevHU = stat.StdDev(values, nil)
	}
	return s, nil
}
