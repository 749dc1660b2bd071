package landcover

import (
	"bytes"
	"cmp"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/tiff/lzw"
)

// TIFF compression schemes.
const (
	compressionNone         = 1
	compressionLZW          = 5
	compressionDeflate      = 8
	compressionDeflateAdobe = 32946
)

// TIFF predictors.
const (
	predictorNone       = 1
	predictorHorizontal = 2
)

// TIFF sample formats.
const (
	sampleFormatUint = 1
	sampleFormatInt  = 2
)

var errShortRead = errors.New("short read")

// A GeoTIFFDataset is an open single-band integer GeoTIFF.
type GeoTIFFDataset struct {
	file           readAtSeekCloser
	imageWidth     int
	imageLength    int
	blockWidth     int
	blockLength    int
	blocksAcross   int
	blocksDown     int
	tiled          bool
	blockOffsets   []uint64
	blockByteCount []uint64
	compression    int
	predictor      int
	bitsPerSample  int
	signed         bool
	geoTransform   GeoTransform
	noData         float64
	hasNoData      bool
	srid           int
	blockCache     *lru.Cache[int, []int64]
	blockCacheSize int
}

// A GeoTIFFDatasetOption sets an option on a GeoTIFFDataset.
type GeoTIFFDatasetOption func(*GeoTIFFDataset)

type readAtSeekCloser interface {
	io.ReadSeeker
	io.ReaderAt
	io.Closer
}

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth                uint32    `tiff:"field,tag=256"`
	ImageLength               uint32    `tiff:"field,tag=257"`
	BitsPerSample             uint16    `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	StripOffsets              []uint64  `tiff:"field,tag=273"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	RowsPerStrip              uint32    `tiff:"field,tag=278"`
	StripByteCounts           []uint64  `tiff:"field,tag=279"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint32    `tiff:"field,tag=322"`
	TileLength                uint32    `tiff:"field,tag=323"`
	TileOffsets               []uint64  `tiff:"field,tag=324"`
	TileByteCounts            []uint64  `tiff:"field,tag=325"`
	SampleFormat              uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
	GeoKeyDirectoryTag        []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag        []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag         string    `tiff:"field,tag=34737"`
	GDALNoData                string    `tiff:"field,tag=42113"`
}

// WithBlockCacheSize sets the number of decoded blocks that are cached.
func WithBlockCacheSize(blockCacheSize int) GeoTIFFDatasetOption {
	return func(d *GeoTIFFDataset) {
		d.blockCacheSize = blockCacheSize
	}
}

// OpenGeoTIFF opens the GeoTIFF filename in fsys. The file returned by fsys
// must implement io.ReaderAt and io.Seeker.
func OpenGeoTIFF(fsys fs.FS, filename string, options ...GeoTIFFDatasetOption) (*GeoTIFFDataset, error) {
	file, err := fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	f, ok := file.(readAtSeekCloser)
	if !ok {
		_ = file.Close()
		return nil, ErrUnsupported
	}
	d, err := newGeoTIFFDataset(f, options...)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return d, nil
}

func newGeoTIFFDataset(file readAtSeekCloser, options ...GeoTIFFDatasetOption) (*GeoTIFFDataset, error) {
	d := &GeoTIFFDataset{
		file:           file,
		blockCacheSize: 64,
	}
	for _, option := range options {
		option(d)
	}

	byteOrder := make([]byte, 2)
	switch n, err := file.ReadAt(byteOrder, 0); {
	case err != nil:
		return nil, err
	case n != 2:
		return nil, errShortRead
	case string(byteOrder) != "II":
		return nil, fmt.Errorf("byte order %q: %w", byteOrder, ErrUnsupported)
	}

	tiffTIFF, err := tiff.Parse(file, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, err
	}

	if len(tiffTIFF.IFDs()) != 1 {
		return nil, fmt.Errorf("found %d IFDs, expected 1", len(tiffTIFF.IFDs()))
	}

	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, err
	}

	if ifd.SamplesPerPixel > 1 || ifd.PlanarConfiguration > 1 {
		return nil, ErrUnsupported
	}
	if err := checkSampleFormat(ifd.BitsPerSample, ifd.SampleFormat); err != nil {
		return nil, err
	}
	switch ifd.Compression {
	case compressionNone, compressionLZW, compressionDeflate, compressionDeflateAdobe:
	default:
		return nil, fmt.Errorf("compression %d: %w", ifd.Compression, ErrUnsupported)
	}
	switch ifd.Predictor {
	case 0, predictorNone, predictorHorizontal:
	default:
		return nil, fmt.Errorf("predictor %d: %w", ifd.Predictor, ErrUnsupported)
	}

	d.imageWidth = int(ifd.ImageWidth)
	d.imageLength = int(ifd.ImageLength)
	d.bitsPerSample = int(ifd.BitsPerSample)
	d.signed = ifd.SampleFormat == sampleFormatInt
	d.compression = int(ifd.Compression)
	d.predictor = max(int(ifd.Predictor), predictorNone)

	if ifd.TileWidth != 0 && ifd.TileLength != 0 {
		d.tiled = true
		d.blockWidth = int(ifd.TileWidth)
		d.blockLength = int(ifd.TileLength)
		d.blockOffsets = ifd.TileOffsets
		d.blockByteCount = ifd.TileByteCounts
	} else {
		d.blockWidth = d.imageWidth
		d.blockLength = int(ifd.RowsPerStrip)
		if d.blockLength == 0 || d.blockLength > d.imageLength {
			d.blockLength = d.imageLength
		}
		d.blockOffsets = ifd.StripOffsets
		d.blockByteCount = ifd.StripByteCounts
	}
	if d.blockWidth == 0 || d.blockLength == 0 {
		return nil, errors.New("empty image")
	}
	d.blocksAcross = (d.imageWidth + d.blockWidth - 1) / d.blockWidth
	d.blocksDown = (d.imageLength + d.blockLength - 1) / d.blockLength
	blocksPerImage := d.blocksAcross * d.blocksDown
	if len(d.blockOffsets) != blocksPerImage || len(d.blockByteCount) != blocksPerImage {
		return nil, errors.New("incorrect number of block byte counts or offsets")
	}

	if len(ifd.ModelPixelScaleTag) < 2 || len(ifd.ModelTiepointTag) < 6 {
		return nil, fmt.Errorf("missing georeferencing: %w", ErrUnsupported)
	}
	scaleX, scaleY := ifd.ModelPixelScaleTag[0], ifd.ModelPixelScaleTag[1]
	i, j := ifd.ModelTiepointTag[0], ifd.ModelTiepointTag[1]
	x, y := ifd.ModelTiepointTag[3], ifd.ModelTiepointTag[4]
	d.geoTransform = NewNorthUpGeoTransform(x-i*scaleX, y+j*scaleY, scaleX)
	d.geoTransform[5] = -scaleY

	if noData := strings.TrimRight(ifd.GDALNoData, "\x00 "); noData != "" {
		d.noData, err = strconv.ParseFloat(noData, 64)
		if err != nil {
			return nil, fmt.Errorf("GDAL_NODATA: %w", err)
		}
		d.hasNoData = true
	}

	if len(ifd.GeoKeyDirectoryTag) != 0 {
		parsedGeoKeys, err := ParseGeoKeys(ifd.GeoKeyDirectoryTag, ifd.GeoDoubleParamsTag, []byte(ifd.GeoASCIIParamsTag))
		if err != nil {
			return nil, fmt.Errorf("GeoKeyDirectory: %w", err)
		}
		d.srid = parsedGeoKeys.SRID()
	}

	d.blockCache, err = lru.New[int, []int64](max(d.blockCacheSize, 1))
	if err != nil {
		return nil, err
	}

	return d, nil
}

// checkSampleFormat returns an error wrapping ErrUnsupported if samples of
// bitsPerSample bits in sampleFormat cannot be represented as int64s.
func checkSampleFormat(bitsPerSample, sampleFormat uint16) error {
	switch sampleFormat {
	case 0, sampleFormatUint, sampleFormatInt:
	default:
		return fmt.Errorf("sample format %d: %w", sampleFormat, ErrUnsupported)
	}
	switch bitsPerSample {
	case 8, 16, 32:
	case 64:
		if sampleFormat != sampleFormatInt {
			return fmt.Errorf("unsigned 64 bit samples: %w", ErrUnsupported)
		}
	default:
		return fmt.Errorf("%d bits per sample: %w", bitsPerSample, ErrUnsupported)
	}
	return nil
}

// Close closes d.
func (d *GeoTIFFDataset) Close() error {
	return d.file.Close()
}

// Size returns d's size in pixels.
func (d *GeoTIFFDataset) Size() (int, int) {
	return d.imageWidth, d.imageLength
}

// GeoTransform returns d's geotransform.
func (d *GeoTIFFDataset) GeoTransform() GeoTransform {
	return d.geoTransform
}

// NoData returns d's no-data value, if any.
func (d *GeoTIFFDataset) NoData() (float64, bool) {
	return d.noData, d.hasNoData
}

// SRID returns the EPSG code of d's CRS, or zero if it is not known.
func (d *GeoTIFFDataset) SRID() int {
	return d.srid
}

// ReadBand reads the pixels in window.
func (d *GeoTIFFDataset) ReadBand(ctx context.Context, window PixelWindow) (*Array, error) {
	if err := window.CheckBounds(d.imageWidth, d.imageLength); err != nil {
		return nil, err
	}
	array := NewArray(window.Width, window.Height)
	if d.bitsPerSample == 64 || d.bitsPerSample == 32 && !d.signed {
		array.DataType = Int64
	}
	if window.Width == 0 || window.Height == 0 {
		return array, nil
	}

	minC, maxC := window.X/d.blockWidth, (window.X+window.Width-1)/d.blockWidth
	minR, maxR := window.Y/d.blockLength, (window.Y+window.Height-1)/d.blockLength
	for r := minR; r <= maxR; r++ {
		for c := minC; c <= maxC; c++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			blockSamples, err := d.getBlockSamplesCached(c, r)
			if err != nil {
				return nil, err
			}
			x0, y0 := c*d.blockWidth, r*d.blockLength
			xMin, xMax := max(window.X, x0), min(window.X+window.Width, x0+d.blockWidth)
			yMin, yMax := max(window.Y, y0), min(window.Y+window.Height, y0+d.blockLength)
			for y := yMin; y < yMax; y++ {
				src := blockSamples[(y-y0)*d.blockWidth+xMin-x0 : (y-y0)*d.blockWidth+xMax-x0]
				dst := array.Data[(y-window.Y)*array.Width+xMin-window.X:]
				copy(dst, src)
			}
		}
	}
	return array, nil
}

// Histogram returns the histogram of d's values, excluding the no-data value.
func (d *GeoTIFFDataset) Histogram(ctx context.Context) (Histogram, error) {
	counts := make(map[int64]uint64)
	for y := 0; y < d.imageLength; y += d.blockLength {
		array, err := d.ReadBand(ctx, PixelWindow{
			X:      0,
			Y:      y,
			Width:  d.imageWidth,
			Height: min(d.blockLength, d.imageLength-y),
		})
		if err != nil {
			return nil, err
		}
		for _, value := range array.Data {
			counts[value]++
		}
	}
	if d.hasNoData && d.noData == math.Trunc(d.noData) {
		delete(counts, int64(d.noData))
	}
	return newHistogram(counts), nil
}

// getCompressedBlockData returns the compressed data of block blockIndex.
func (d *GeoTIFFDataset) getCompressedBlockData(blockIndex int) ([]byte, error) {
	byteCount := d.blockByteCount[blockIndex]
	offset := d.blockOffsets[blockIndex]
	compressedData := make([]byte, byteCount)
	switch n, err := d.file.ReadAt(compressedData, int64(offset)); {
	case err != nil && !(errors.Is(err, io.EOF) && n == int(byteCount)):
		return nil, err
	case n != int(byteCount):
		return nil, errShortRead
	default:
		return compressedData, nil
	}
}

// decompressBlockData decompresses compressedData into size bytes.
func (d *GeoTIFFDataset) decompressBlockData(compressedData []byte, size int) ([]byte, error) {
	var r io.Reader
	switch d.compression {
	case compressionNone:
		if len(compressedData) < size {
			return nil, errShortRead
		}
		return compressedData[:size], nil
	case compressionLZW:
		lzwReader := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
		defer lzwReader.Close()
		r = lzwReader
	default:
		zlibReader, err := zlib.NewReader(bytes.NewReader(compressedData))
		if err != nil {
			return nil, err
		}
		defer zlibReader.Close()
		r = zlibReader
	}
	blockData := make([]byte, size)
	if _, err := io.ReadFull(r, blockData); err != nil {
		return nil, err
	}
	return blockData, nil
}

// decodeBlockData decodes blockData, which contains rows rows of
// d.blockWidth samples.
func (d *GeoTIFFDataset) decodeBlockData(blockData []byte, rows int) []int64 {
	bytesPerSample := d.bitsPerSample / 8
	raw := make([]uint64, d.blockWidth*rows)
	for i := range raw {
		b := blockData[i*bytesPerSample : (i+1)*bytesPerSample]
		switch d.bitsPerSample {
		case 8:
			raw[i] = uint64(b[0])
		case 16:
			raw[i] = uint64(binary.LittleEndian.Uint16(b))
		case 32:
			raw[i] = uint64(binary.LittleEndian.Uint32(b))
		case 64:
			raw[i] = binary.LittleEndian.Uint64(b)
		}
	}

	var mask uint64 = math.MaxUint64
	if d.bitsPerSample < 64 {
		mask = 1<<d.bitsPerSample - 1
	}
	if d.predictor == predictorHorizontal {
		for y := range rows {
			row := raw[y*d.blockWidth : (y+1)*d.blockWidth]
			for x := 1; x < len(row); x++ {
				row[x] = (row[x] + row[x-1]) & mask
			}
		}
	}

	samples := make([]int64, len(raw))
	shift := 64 - d.bitsPerSample
	for i, value := range raw {
		if d.signed {
			samples[i] = int64(value<<shift) >> shift
		} else {
			samples[i] = int64(value)
		}
	}
	return samples
}

// getBlockSamples returns the decoded samples of the block at (c, r). The
// result always has d.blockWidth*d.blockLength samples.
func (d *GeoTIFFDataset) getBlockSamples(c, r int) ([]int64, error) {
	blockIndex := c + d.blocksAcross*r
	compressedData, err := d.getCompressedBlockData(blockIndex)
	if err != nil {
		return nil, err
	}

	rows := d.blockLength
	if !d.tiled {
		rows = min(d.blockLength, d.imageLength-r*d.blockLength)
	}
	blockData, err := d.decompressBlockData(compressedData, d.blockWidth*rows*d.bitsPerSample/8)
	if err != nil {
		return nil, err
	}
	samples := d.decodeBlockData(blockData, rows)
	if rows < d.blockLength {
		samples = append(samples, make([]int64, (d.blockLength-rows)*d.blockWidth)...)
	}
	return samples, nil
}

// getBlockSamplesCached returns the samples of the block at (c, r) using d's
// cache.
func (d *GeoTIFFDataset) getBlockSamplesCached(c, r int) ([]int64, error) {
	blockIndex := c + d.blocksAcross*r
	if samples, ok := d.blockCache.Get(blockIndex); ok {
		blockCacheHits.Inc()
		return samples, nil
	}
	blockCacheMisses.Inc()
	samples, err := d.getBlockSamples(c, r)
	if err != nil {
		return nil, err
	}
	d.blockCache.Add(blockIndex, samples)
	return samples, nil
}

// newHistogram returns the Histogram of counts, omitting zero counts.
func newHistogram(counts map[int64]uint64) Histogram {
	histogram := make(Histogram, 0, len(counts))
	for value, count := range counts {
		if count == 0 {
			continue
		}
		histogram = append(histogram, Bin{Value: value, Count: count})
	}
	slices.SortFunc(histogram, func(a, b Bin) int {
		return cmp.Compare(a.Value, b.Value)
	})
	return histogram
}

// A GeoTIFFDriver is a Driver for GeoTIFF files on the local filesystem.
type GeoTIFFDriver struct {
	datasetOptions []GeoTIFFDatasetOption
}

// NewGeoTIFFDriver returns a new GeoTIFFDriver. options are passed to every
// dataset that it opens.
func NewGeoTIFFDriver(options ...GeoTIFFDatasetOption) *GeoTIFFDriver {
	return &GeoTIFFDriver{
		datasetOptions: options,
	}
}

// Open opens the GeoTIFF name.
func (g *GeoTIFFDriver) Open(name string) (Dataset, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	d, err := newGeoTIFFDataset(file, g.datasetOptions...)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
