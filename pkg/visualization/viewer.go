// Package visualization prepares scan data for 2D display: it maps
// Hounsfield intensities into a display window and extracts slice images
// along any axis, optionally highlighting the segmented lung mask.
// Interactive rendering is left to the consumer of these images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"

	"lungseg3d/internal/models"
)

// Viewer extracts display-ready slice images from a scan volume.
type Viewer struct {
	// normalized holds the display intensities in [0, 1]
	normalized []float64

	// dimensions of the volume
	width  int
	height int
	depth  int

	// mask is an optional lung mask overlaid on extracted slices
	mask *models.BinaryMask
}

// NewViewer creates a viewer over the volume, windowing intensities from
// [lowHU, highHU] onto [0, 1]. Values outside the window clamp.
func NewViewer(vol *models.Volume, lowHU, highHU float64) (*Viewer, error) {
	if err := vol.Validate(); err != nil {
		return nil, fmt.Errorf("viewer: %w", err)
	}
	if highHU <= lowHU {
		return nil, fmt.Errorf("viewer: window high (%f) must exceed low (%f)", highHU, lowHU)
	}

	normalized := make([]float64, len(vol.Data))
	span := highHU - lowHU
	for i, v := range vol.Data {
		n := (v - lowHU) / span
		if n < 0 {
			n = 0
		} else if n > 1 {
			n = 1
		}
		normalized[i] = n
	}

	return &Viewer{
		normalized: normalized,
		width:      vol.Cols,
		height:     vol.Rows,
		depth:      vol.Depth,
	}, nil
}

// AutoWindow picks a display window from the volume's intensity
// distribution, spanning the 1st to 99th percentile. Useful when a
// scan's typical display range is unknown.
func AutoWindow(vol *models.Volume) (lowHU, highHU float64) {
	values := make([]float64, len(vol.Data))
	copy(values, vol.Data)
	sort.Float64s(values)

	lowHU = stat.Quantile(0.01, stat.Empirical, values, nil)
	highHU = stat.Quantile(0.99, stat.Empirical, values, nil)
	if highHU <= lowHU {
		highHU = lowHU + 1
	}
	return lowHU, highHU
}

// SetMask attaches a lung mask to overlay on extracted slices. The mask
// must match the viewer's volume shape.
func (v *Viewer) SetMask(mask *models.BinaryMask) error {
	if mask.Depth != v.depth || mask.Rows != v.height || mask.Cols != v.width {
		return fmt.Errorf("viewer: mask shape %dx%dx%d does not match volume shape %dx%dx%d",
			mask.Depth, mask.Rows, mask.Cols, v.depth, v.height, v.width)
	}
	v.mask = mask
	return nil
}

// ExtractSlice extracts a 2D slice from the 3D volume along the specified
// axis. With a mask attached, selected voxels are tinted red.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img := image.NewRGBA(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				idx := z*v.width*v.height + y*v.width + position
				img.Set(z, y, v.pixelColor(idx))
			}
		}
		return img, nil

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img := image.NewRGBA(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				idx := z*v.width*v.height + position*v.width + x
				img.Set(x, z, v.pixelColor(idx))
			}
		}
		return img, nil

	case "z", "Z":
		// Extract slice along XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img := image.NewRGBA(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				idx := position*v.width*v.height + y*v.width + x
				img.Set(x, y, v.pixelColor(idx))
			}
		}
		return img, nil

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// pixelColor maps a voxel to its display color, tinting masked voxels.
func (v *Viewer) pixelColor(idx int) color.Color {
	value := uint8(v.normalized[idx] * 255)
	if v.mask != nil && v.mask.Data[idx] {
		r := uint8(128 + int(value)/2)
		return color.RGBA{R: r, G: value / 2, B: value / 2, A: 255}
	}
	return color.RGBA{R: value, G: value, B: value, A: 255}
}

// SaveSlice saves an extracted slice as a JPEG image.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves a sequence of slices along the
// specified axis.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
