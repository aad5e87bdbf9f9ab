package loader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lungseg3d/internal/models"
)

// mhdHeader holds the MetaImage header fields this loader understands.
type mhdHeader struct {
	nDims       int
	dimSize     []int     // (x, y, z) order, as written by ITK
	spacing     []float64 // (x, y, z) order
	elementType string
	dataFile    string
	bigEndian   bool
	compressed  bool
}

// LoadMHD reads a MetaImage volume: a text header of Key = Value lines
// plus a raw element blob, either appended to the header (LOCAL) or in a
// sibling file. Spacing and dimensions are reversed into the
// (depth, row, col) order the pipeline uses.
func LoadMHD(path string) (*models.Volume, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MHD file: %w", err)
	}
	defer file.Close()

	header, headerLen, err := parseMHDHeader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MHD header: %w", err)
	}

	if header.nDims != 3 {
		return nil, fmt.Errorf("expected a 3-dimensional MetaImage, got NDims = %d", header.nDims)
	}
	if header.compressed {
		return nil, fmt.Errorf("compressed MetaImage data is not supported")
	}
	if len(header.dimSize) != 3 || len(header.spacing) != 3 {
		return nil, fmt.Errorf("incomplete MetaImage header: DimSize %v, ElementSpacing %v",
			header.dimSize, header.spacing)
	}

	var raw []byte
	if header.dataFile == "" || strings.EqualFold(header.dataFile, "LOCAL") {
		// Element data follows the header in the same file
		if _, err := file.Seek(int64(headerLen), 0); err != nil {
			return nil, fmt.Errorf("failed to seek to element data: %w", err)
		}
		raw, err = readAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read element data: %w", err)
		}
	} else {
		dataPath := filepath.Join(filepath.Dir(path), header.dataFile)
		raw, err = os.ReadFile(dataPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read element data file: %w", err)
		}
	}

	// ITK writes (x, y, z); the pipeline indexes (depth, row, col)
	cols, rows, depth := header.dimSize[0], header.dimSize[1], header.dimSize[2]
	spacing := [3]float64{header.spacing[2], header.spacing[1], header.spacing[0]}

	vol, err := models.NewVolume(depth, rows, cols, spacing)
	if err != nil {
		return nil, err
	}

	if err := decodeElements(raw, header.elementType, header.bigEndian, vol.Data); err != nil {
		return nil, fmt.Errorf("failed to decode element data: %w", err)
	}

	return vol, nil
}

// parseMHDHeader reads Key = Value lines until ElementDataFile, which in
// the MetaImage format is always the last header entry. It returns the
// header and its byte length within the file.
func parseMHDHeader(file *os.File) (*mhdHeader, int, error) {
	header := &mhdHeader{}
	reader := bufio.NewReader(file)
	offset := 0

	for {
		line, err := reader.ReadString('\n')
		offset += len(line)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if err != nil {
				break
			}
			continue
		}

		key, value, found := strings.Cut(trimmed, "=")
		if !found {
			return nil, 0, fmt.Errorf("malformed header line %q", trimmed)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "NDims":
			header.nDims, _ = strconv.Atoi(value)
		case "DimSize":
			for _, f := range strings.Fields(value) {
				n, err := strconv.Atoi(f)
				if err != nil {
					return nil, 0, fmt.Errorf("bad DimSize value %q", value)
				}
				header.dimSize = append(header.dimSize, n)
			}
		case "ElementSpacing", "ElementSize":
			if len(header.spacing) > 0 {
				break // ElementSpacing wins over ElementSize
			}
			for _, f := range strings.Fields(value) {
				s, err := strconv.ParseFloat(f, 64)
				if err != nil {
					return nil, 0, fmt.Errorf("bad %s value %q", key, value)
				}
				header.spacing = append(header.spacing, s)
			}
		case "ElementType":
			header.elementType = value
		case "ElementByteOrderMSB", "BinaryDataByteOrderMSB":
			header.bigEndian = strings.EqualFold(value, "True")
		case "CompressedData":
			header.compressed = strings.EqualFold(value, "True")
		case "ElementDataFile":
			header.dataFile = value
			return header, offset, nil
		}

		if err != nil {
			break
		}
	}

	return nil, 0, fmt.Errorf("header ended without ElementDataFile")
}

// decodeElements converts the raw blob into float64 intensities.
func decodeElements(raw []byte, elementType string, bigEndian bool, out []float64) error {
	var order binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}

	need := func(bytesPerElement int) error {
		if len(raw) < len(out)*bytesPerElement {
			return fmt.Errorf("element data too short: have %d bytes, need %d",
				len(raw), len(out)*bytesPerElement)
		}
		return nil
	}

	switch elementType {
	case "MET_SHORT":
		if err := need(2); err != nil {
			return err
		}
		for i := range out {
			out[i] = float64(int16(order.Uint16(raw[i*2:])))
		}
	case "MET_USHORT":
		if err := need(2); err != nil {
			return err
		}
		for i := range out {
			out[i] = float64(order.Uint16(raw[i*2:]))
		}
	case "MET_CHAR":
		if err := need(1); err != nil {
			return err
		}
		for i := range out {
			out[i] = float64(int8(raw[i]))
		}
	case "MET_UCHAR":
		if err := need(1); err != nil {
			return err
		}
		for i := range out {
			out[i] = float64(raw[i])
		}
	case "MET_INT":
		if err := need(4); err != nil {
			return err
		}
		for i := range out {
			out[i] = float64(int32(order.Uint32(raw[i*4:])))
		}
	case "MET_FLOAT":
		if err := need(4); err != nil {
			return err
		}
		for i := range out {
			out[i] = float64(math.Float32frombits(order.Uint32(raw[i*4:])))
		}
	case "MET_DOUBLE":
		if err := need(8); err != nil {
			return err
		}
		for i := range out {
			out[i] = math.Float64frombits(order.Uint64(raw[i*8:]))
		}
	default:
		return fmt.Errorf("unsupported element type %q", elementType)
	}

	return nil
}

// readAll drains the remainder of a file.
func readAll(file *os.File) ([]byte, error) {
	return io.ReadAll(file)
}
