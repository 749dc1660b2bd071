package landcover

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
)

// TIFF field types.
const (
	fieldTypeASCII  = 2
	fieldTypeShort  = 3
	fieldTypeLong   = 4
	fieldTypeDouble = 12
)

// stripSizeBytes is the target uncompressed size of a written strip.
const stripSizeBytes = 64 << 10

var (
	_ Driver          = &GeoTIFFDriver{}
	_ Dataset         = &GeoTIFFDataset{}
	_ WritableDataset = &geoTIFFWriter{}
)

// A geoTIFFWriter buffers a band in memory and encodes it as a
// Deflate-compressed GeoTIFF when it is closed.
type geoTIFFWriter struct {
	name         string
	array        *Array
	geoTransform GeoTransform
	noData       float64
	srid         int
}

// A tiffEntry is an IFD entry.
type tiffEntry struct {
	tag       uint16
	fieldType uint16
	count     uint32
	data      []byte
}

// Create creates a new GeoTIFF name. The file is written when the returned
// WritableDataset is closed.
func (g *GeoTIFFDriver) Create(name string, width, height int, dataType DataType, geoTransform GeoTransform, noData float64, srid int) (WritableDataset, error) {
	if !geoTransform.IsNorthUp() {
		return nil, fmt.Errorf("%s: geotransform %v: %w", name, geoTransform, ErrUnsupported)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%s: invalid size %dx%d", name, width, height)
	}
	array := NewArray(width, height)
	array.DataType = dataType
	return &geoTIFFWriter{
		name:         name,
		array:        array,
		geoTransform: geoTransform,
		noData:       noData,
		srid:         srid,
	}, nil
}

// WriteBand copies array into window.
func (w *geoTIFFWriter) WriteBand(window PixelWindow, array *Array) error {
	if err := window.CheckBounds(w.array.Width, w.array.Height); err != nil {
		return err
	}
	if array.Width != window.Width || array.Height != window.Height {
		return fmt.Errorf("array size %dx%d does not match window %+v", array.Width, array.Height, window)
	}
	if w.array.DataType == Int32 && !array.fitsInt32() {
		return fmt.Errorf("%s: values overflow %s", w.name, Int32)
	}
	for y := range window.Height {
		copy(w.array.Data[(window.Y+y)*w.array.Width+window.X:], array.Data[y*array.Width:(y+1)*array.Width])
	}
	return nil
}

// Close encodes and writes the GeoTIFF.
func (w *geoTIFFWriter) Close() error {
	data, err := w.encode()
	if err != nil {
		return fmt.Errorf("%s: %w", w.name, err)
	}
	return os.WriteFile(w.name, data, 0o666)
}

func (w *geoTIFFWriter) encode() ([]byte, error) {
	bytesPerSample := 4
	if w.array.DataType == Int64 {
		bytesPerSample = 8
	}
	rowBytes := w.array.Width * bytesPerSample
	rowsPerStrip := min(max(stripSizeBytes/rowBytes, 1), w.array.Height)

	buffer := &bytes.Buffer{}
	buffer.Write([]byte{'I', 'I', 42, 0, 0, 0, 0, 0})

	var stripOffsets, stripByteCounts []uint32
	row := make([]byte, rowBytes)
	for y0 := 0; y0 < w.array.Height; y0 += rowsPerStrip {
		offset := buffer.Len()
		zlibWriter := zlib.NewWriter(buffer)
		for y := y0; y < min(y0+rowsPerStrip, w.array.Height); y++ {
			for x, value := range w.array.Data[y*w.array.Width : (y+1)*w.array.Width] {
				if bytesPerSample == 4 {
					binary.LittleEndian.PutUint32(row[4*x:], uint32(int32(value)))
				} else {
					binary.LittleEndian.PutUint64(row[8*x:], uint64(value))
				}
			}
			if _, err := zlibWriter.Write(row); err != nil {
				return nil, err
			}
		}
		if err := zlibWriter.Close(); err != nil {
			return nil, err
		}
		stripOffsets = append(stripOffsets, uint32(offset))
		stripByteCounts = append(stripByteCounts, uint32(buffer.Len()-offset))
		padToWord(buffer)
	}

	originX, originY := w.geoTransform.Origin()
	pixelWidth, pixelHeight := w.geoTransform.PixelSize()
	entries := []tiffEntry{
		longEntry(256, uint32(w.array.Width)),
		longEntry(257, uint32(w.array.Height)),
		shortEntry(258, uint16(8*bytesPerSample)),
		shortEntry(259, compressionDeflate),
		shortEntry(262, 1),
		longEntry(273, stripOffsets...),
		shortEntry(277, 1),
		longEntry(278, uint32(rowsPerStrip)),
		longEntry(279, stripByteCounts...),
		shortEntry(284, 1),
		shortEntry(339, sampleFormatInt),
		doubleEntry(33550, pixelWidth, -pixelHeight, 0),
		doubleEntry(33922, 0, 0, 0, originX, originY, 0),
		asciiEntry(42113, strconv.FormatFloat(w.noData, 'g', -1, 64)),
	}
	if w.srid != 0 {
		entries = append(entries, shortEntry(34735, encodeGeoKeys(w.srid)...))
	}
	slices.SortFunc(entries, func(a, b tiffEntry) int {
		return int(a.tag) - int(b.tag)
	})

	// Values that do not fit in an entry are written before the IFD.
	valueOffsets := make([]uint32, len(entries))
	for i, entry := range entries {
		if len(entry.data) > 4 {
			valueOffsets[i] = uint32(buffer.Len())
			buffer.Write(entry.data)
			padToWord(buffer)
		}
	}

	ifdOffset := buffer.Len()
	_ = binary.Write(buffer, binary.LittleEndian, uint16(len(entries)))
	for i, entry := range entries {
		_ = binary.Write(buffer, binary.LittleEndian, entry.tag)
		_ = binary.Write(buffer, binary.LittleEndian, entry.fieldType)
		_ = binary.Write(buffer, binary.LittleEndian, entry.count)
		if len(entry.data) > 4 {
			_ = binary.Write(buffer, binary.LittleEndian, valueOffsets[i])
		} else {
			value := make([]byte, 4)
			copy(value, entry.data)
			buffer.Write(value)
		}
	}
	_ = binary.Write(buffer, binary.LittleEndian, uint32(0))

	data := buffer.Bytes()
	binary.LittleEndian.PutUint32(data[4:8], uint32(ifdOffset))
	return data, nil
}

func padToWord(buffer *bytes.Buffer) {
	if buffer.Len()%2 != 0 {
		buffer.WriteByte(0)
	}
}

func shortEntry(tag uint16, values ...uint16) tiffEntry {
	data := make([]byte, 2*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint16(data[2*i:], value)
	}
	return tiffEntry{tag: tag, fieldType: fieldTypeShort, count: uint32(len(values)), data: data}
}

func longEntry(tag uint16, values ...uint32) tiffEntry {
	data := make([]byte, 4*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint32(data[4*i:], value)
	}
	return tiffEntry{tag: tag, fieldType: fieldTypeLong, count: uint32(len(values)), data: data}
}

func doubleEntry(tag uint16, values ...float64) tiffEntry {
	data := make([]byte, 8*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(value))
	}
	return tiffEntry{tag: tag, fieldType: fieldTypeDouble, count: uint32(len(values)), data: data}
}

func asciiEntry(tag uint16, value string) tiffEntry {
	data := append([]byte(value), 0)
	return tiffEntry{tag: tag, fieldType: fieldTypeASCII, count: uint32(len(data)), data: data}
}
