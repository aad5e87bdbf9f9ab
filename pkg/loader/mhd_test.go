package loader

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeShortBlob encodes int16 elements in little-endian order.
func writeShortBlob(t *testing.T, path string, values []int16) {
	t.Helper()
	buf := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("Failed to write element data: %v", err)
	}
}

// testElements is a 2x2x2 volume with one value per voxel, in the
// (x fastest, then y, then z) order MetaImage uses.
func testElements() []int16 {
	return []int16{
		-1000, -900,
		-800, -700,

		100, 200,
		300, 400,
	}
}

// TestLoadMHDSiblingFile verifies loading with a separate .raw data file.
func TestLoadMHDSiblingFile(t *testing.T) {
	dir := t.TempDir()
	header := "NDims = 3\n" +
		"DimSize = 2 2 2\n" +
		"ElementSpacing = 0.7 0.8 2.5\n" +
		"ElementType = MET_SHORT\n" +
		"ElementDataFile = scan.raw\n"

	mhdPath := filepath.Join(dir, "scan.mhd")
	if err := os.WriteFile(mhdPath, []byte(header), 0644); err != nil {
		t.Fatalf("Failed to write header: %v", err)
	}
	writeShortBlob(t, filepath.Join(dir, "scan.raw"), testElements())

	vol, err := LoadMHD(mhdPath)
	if err != nil {
		t.Fatalf("LoadMHD failed: %v", err)
	}

	if vol.Depth != 2 || vol.Rows != 2 || vol.Cols != 2 {
		t.Fatalf("Expected shape 2x2x2, got %dx%dx%d", vol.Depth, vol.Rows, vol.Cols)
	}

	// Header spacing is (x, y, z); the volume stores (depth, row, col)
	want := [3]float64{2.5, 0.8, 0.7}
	if vol.Spacing != want {
		t.Errorf("Expected spacing %v, got %v", want, vol.Spacing)
	}

	if got := vol.At(0, 0, 0); got != -1000 {
		t.Errorf("Expected -1000 at (0,0,0), got %f", got)
	}
	if got := vol.At(0, 1, 1); got != -700 {
		t.Errorf("Expected -700 at (0,1,1), got %f", got)
	}
	if got := vol.At(1, 0, 1); got != 200 {
		t.Errorf("Expected 200 at (1,0,1), got %f", got)
	}
	if got := vol.At(1, 1, 1); got != 400 {
		t.Errorf("Expected 400 at (1,1,1), got %f", got)
	}
}

// TestLoadMHDLocalData verifies the LOCAL layout with the element blob
// appended to the header.
func TestLoadMHDLocalData(t *testing.T) {
	dir := t.TempDir()
	header := "NDims = 3\n" +
		"DimSize = 2 2 2\n" +
		"ElementSpacing = 1 1 1\n" +
		"ElementType = MET_SHORT\n" +
		"ElementDataFile = LOCAL\n"

	values := testElements()
	buf := []byte(header)
	for _, v := range values {
		var e [2]byte
		binary.LittleEndian.PutUint16(e[:], uint16(v))
		buf = append(buf, e[:]...)
	}

	mhdPath := filepath.Join(dir, "scan.mha")
	if err := os.WriteFile(mhdPath, buf, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	vol, err := LoadMHD(mhdPath)
	if err != nil {
		t.Fatalf("LoadMHD failed: %v", err)
	}
	if got := vol.At(0, 0, 1); got != -900 {
		t.Errorf("Expected -900 at (0,0,1), got %f", got)
	}
	if got := vol.At(1, 1, 0); got != 300 {
		t.Errorf("Expected 300 at (1,1,0), got %f", got)
	}
}

// TestLoadMHDBigEndian verifies byte order handling.
func TestLoadMHDBigEndian(t *testing.T) {
	dir := t.TempDir()
	header := "NDims = 3\n" +
		"DimSize = 1 1 1\n" +
		"ElementSpacing = 1 1 1\n" +
		"ElementType = MET_SHORT\n" +
		"ElementByteOrderMSB = True\n" +
		"ElementDataFile = scan.raw\n"

	mhdPath := filepath.Join(dir, "scan.mhd")
	if err := os.WriteFile(mhdPath, []byte(header), 0644); err != nil {
		t.Fatalf("Failed to write header: %v", err)
	}
	var blob [2]byte
	val := int16(-500)
	binary.BigEndian.PutUint16(blob[:], uint16(val))
	if err := os.WriteFile(filepath.Join(dir, "scan.raw"), blob[:], 0644); err != nil {
		t.Fatalf("Failed to write element data: %v", err)
	}

	vol, err := LoadMHD(mhdPath)
	if err != nil {
		t.Fatalf("LoadMHD failed: %v", err)
	}
	if got := vol.At(0, 0, 0); got != -500 {
		t.Errorf("Expected -500, got %f", got)
	}
}

// TestLoadMHDErrors verifies rejection of headers the loader cannot use.
func TestLoadMHDErrors(t *testing.T) {
	cases := []struct {
		name   string
		header string
		blob   []byte
	}{
		{
			name: "wrong dimensionality",
			header: "NDims = 2\n" +
				"DimSize = 2 2\n" +
				"ElementSpacing = 1 1\n" +
				"ElementType = MET_SHORT\n" +
				"ElementDataFile = LOCAL\n",
		},
		{
			name: "unsupported element type",
			header: "NDims = 3\n" +
				"DimSize = 1 1 1\n" +
				"ElementSpacing = 1 1 1\n" +
				"ElementType = MET_LONG_LONG\n" +
				"ElementDataFile = LOCAL\n",
			blob: make([]byte, 8),
		},
		{
			name: "compressed data",
			header: "NDims = 3\n" +
				"DimSize = 1 1 1\n" +
				"ElementSpacing = 1 1 1\n" +
				"ElementType = MET_SHORT\n" +
				"CompressedData = True\n" +
				"ElementDataFile = LOCAL\n",
			blob: make([]byte, 2),
		},
		{
			name: "truncated element data",
			header: "NDims = 3\n" +
				"DimSize = 2 2 2\n" +
				"ElementSpacing = 1 1 1\n" +
				"ElementType = MET_SHORT\n" +
				"ElementDataFile = LOCAL\n",
			blob: make([]byte, 4),
		},
		{
			name: "missing ElementDataFile",
			header: "NDims = 3\n" +
				"DimSize = 1 1 1\n" +
				"ElementSpacing = 1 1 1\n" +
				"ElementType = MET_SHORT\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scan.mhd")
			if err := os.WriteFile(path, append([]byte(tc.header), tc.blob...), 0644); err != nil {
				t.Fatalf("Failed to write file: %v", err)
			}
			if _, err := LoadMHD(path); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

// TestLoadDispatch verifies that Load routes by path type.
func TestLoadDispatch(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.mhd")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}

	path := filepath.Join(t.TempDir(), "scan.txt")
	if err := os.WriteFile(path, []byte("not a scan"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for unsupported file type, got nil")
	}
}
