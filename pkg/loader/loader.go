// Package loader reads CT scans from disk into calibrated volumes.
// Two formats are supported: a directory of DICOM slice files and a
// MetaImage (.mhd) header with its raw element data. Both loaders return
// intensities already converted to Hounsfield units, so the segmenter's
// threshold applies universally.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lungseg3d/internal/models"
)

// Load reads a scan from path, auto-detecting the format: a directory is
// treated as a DICOM series, a .mhd file as a MetaImage volume.
func Load(path string) (*models.Volume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scan path: %w", err)
	}

	if info.IsDir() {
		return LoadDICOMDir(path)
	}
	if strings.EqualFold(filepath.Ext(path), ".mhd") {
		return LoadMHD(path)
	}
	return nil, fmt.Errorf("unrecognized scan format: %s (expected a DICOM directory or a .mhd file)", path)
}
