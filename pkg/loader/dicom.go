package loader

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"lungseg3d/internal/models"
)

// dicomSlice is one parsed slice of a series, with the metadata needed
// for ordering and calibration.
type dicomSlice struct {
	pixels   []float64 // HU, row-major
	rows     int
	cols     int
	position float64 // z of ImagePositionPatient, or SliceLocation
	spacing  [2]float64
}

// LoadDICOMDir reads every DICOM file in a directory, sorts the slices
// along the scan axis, and stacks them into a single calibrated volume.
// Files that fail to parse as DICOM are skipped, matching the loose
// layout of real scan exports.
func LoadDICOMDir(dir string) (*models.Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan directory: %w", err)
	}

	var slices []dicomSlice
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		s, err := parseDICOMSlice(filepath.Join(dir, entry.Name()))
		if err != nil {
			// Not a DICOM slice (or unreadable); skip it
			continue
		}
		slices = append(slices, *s)
	}

	if len(slices) == 0 {
		return nil, fmt.Errorf("no DICOM slices found in %s", dir)
	}

	vol, err := assembleVolume(slices)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return vol, nil
}

// assembleVolume orders parsed slices along the scan axis and stacks them
// into a calibrated volume, inferring slice thickness from adjacent
// positions.
func assembleVolume(slices []dicomSlice) (*models.Volume, error) {
	sort.SliceStable(slices, func(i, j int) bool {
		return slices[i].position < slices[j].position
	})

	rows, cols := slices[0].rows, slices[0].cols
	for i, s := range slices {
		if s.rows != rows || s.cols != cols {
			return nil, fmt.Errorf("slice %d has dimensions %dx%d, expected %dx%d",
				i, s.rows, s.cols, rows, cols)
		}
	}

	thickness := 0.0
	if len(slices) >= 2 {
		thickness = math.Abs(slices[1].position - slices[0].position)
	}
	if thickness <= 0 {
		return nil, fmt.Errorf("unable to determine slice thickness")
	}

	pixelSpacing := slices[0].spacing
	if pixelSpacing[0] <= 0 || pixelSpacing[1] <= 0 {
		return nil, fmt.Errorf("pixel spacing metadata missing")
	}

	vol, err := models.NewVolume(len(slices), rows, cols,
		[3]float64{thickness, pixelSpacing[0], pixelSpacing[1]})
	if err != nil {
		return nil, err
	}

	sliceSize := rows * cols
	for z, s := range slices {
		copy(vol.Data[z*sliceSize:(z+1)*sliceSize], s.pixels)
	}

	return vol, nil
}

// parseDICOMSlice reads one slice file and converts its pixel data to HU.
func parseDICOMSlice(path string) (*dicomSlice, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	pixelEl, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%s has no pixel data: %w", path, err)
	}
	pixelInfo := dicom.MustGetPixelDataInfo(pixelEl.Value)
	if len(pixelInfo.Frames) == 0 {
		return nil, fmt.Errorf("%s has no image frames", path)
	}
	native, err := pixelInfo.Frames[0].GetNativeFrame()
	if err != nil {
		return nil, fmt.Errorf("%s has non-native pixel data: %w", path, err)
	}

	slope := firstFloat(&ds, tag.RescaleSlope, 1)
	intercept := firstFloat(&ds, tag.RescaleIntercept, 0)
	bitsStored := firstInt(&ds, tag.BitsStored, 16)
	signed := firstInt(&ds, tag.PixelRepresentation, 0) == 1

	pixels := make([]float64, 0, len(native.Data))
	for _, sample := range native.Data {
		pixels = append(pixels, toHU(sample[0], slope, intercept, bitsStored, signed))
	}

	s := &dicomSlice{
		pixels: pixels,
		rows:   firstInt(&ds, tag.Rows, native.Rows),
		cols:   firstInt(&ds, tag.Columns, native.Cols),
	}
	if s.rows*s.cols != len(pixels) {
		return nil, fmt.Errorf("%s pixel count %d does not match %dx%d",
			path, len(pixels), s.rows, s.cols)
	}

	// Position along the scan axis: prefer ImagePositionPatient z,
	// fall back to SliceLocation
	if pos, ok := floatStrings(&ds, tag.ImagePositionPatient); ok && len(pos) >= 3 {
		s.position = pos[2]
	} else if loc, ok := floatStrings(&ds, tag.SliceLocation); ok && len(loc) >= 1 {
		s.position = loc[0]
	}

	if spacing, ok := floatStrings(&ds, tag.PixelSpacing); ok && len(spacing) >= 2 {
		s.spacing = [2]float64{spacing[0], spacing[1]}
	}

	return s, nil
}

// toHU converts one stored pixel sample to Hounsfield units:
// HU = slope*stored + intercept, after undoing the unsigned reading of
// two's-complement data.
func toHU(raw int, slope, intercept float64, bitsStored int, signed bool) float64 {
	if signed && raw >= 1<<(bitsStored-1) {
		raw -= 1 << bitsStored
	}
	return slope*float64(raw) + intercept
}

// firstInt returns the first integer value of a tag, or def when absent.
func firstInt(ds *dicom.Dataset, t tag.Tag, def int) int {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return def
	}
	if vals, ok := el.Value.GetValue().([]int); ok && len(vals) > 0 {
		return vals[0]
	}
	return def
}

// firstFloat returns the first numeric value of a tag, accepting either
// decimal-string or integer storage, or def when absent.
func firstFloat(ds *dicom.Dataset, t tag.Tag, def float64) float64 {
	if vals, ok := floatStrings(ds, t); ok && len(vals) > 0 {
		return vals[0]
	}
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return def
	}
	if vals, ok := el.Value.GetValue().([]int); ok && len(vals) > 0 {
		return float64(vals[0])
	}
	return def
}

// floatStrings parses a decimal-string tag into floats.
func floatStrings(ds *dicom.Dataset, t tag.Tag) ([]float64, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, false
	}
	strs, ok := el.Value.GetValue().([]string)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(strs))
	for _, s := range strs {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
