// Package gdal implements a landcover.Driver using GDAL.
package gdal

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/twpayne/go-landcover"
)

var registerOnce sync.Once

var (
	_ landcover.Driver          = &Driver{}
	_ landcover.Dataset         = &Dataset{}
	_ landcover.WritableDataset = &WritableDataset{}
)

// A Driver opens and creates rasters with GDAL.
type Driver struct {
	creationOptions []string
}

// A DriverOption sets an option on a Driver.
type DriverOption func(*Driver)

// A Dataset is a single-band raster opened with GDAL.
type Dataset struct {
	dataset      *godal.Dataset
	band         godal.Band
	geoTransform landcover.GeoTransform
	srid         int
}

// A WritableDataset is a single-band GeoTIFF created with GDAL.
type WritableDataset struct {
	dataset  *godal.Dataset
	band     godal.Band
	dataType landcover.DataType
}

// WithCreationOptions sets the GTiff creation options.
func WithCreationOptions(creationOptions ...string) DriverOption {
	return func(d *Driver) {
		d.creationOptions = creationOptions
	}
}

// NewDriver returns a new Driver. GDAL's drivers are registered on first use.
func NewDriver(options ...DriverOption) *Driver {
	registerOnce.Do(godal.RegisterAll)
	d := &Driver{
		creationOptions: []string{"COMPRESS=LZW"},
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Open opens name.
func (d *Driver) Open(name string) (landcover.Dataset, error) {
	dataset, err := godal.Open(name, godal.RasterOnly())
	if err != nil {
		return nil, err
	}
	bands := dataset.Bands()
	if len(bands) == 0 {
		_ = dataset.Close()
		return nil, fmt.Errorf("%s: no bands", name)
	}
	geoTransform, err := dataset.GeoTransform()
	if err != nil {
		_ = dataset.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	srid := 0
	if dataset.Projection() != "" {
		spatialRef := dataset.SpatialRef()
		if spatialRef.AuthorityName("") == "EPSG" {
			srid, _ = strconv.Atoi(spatialRef.AuthorityCode(""))
		}
	}
	return &Dataset{
		dataset:      dataset,
		band:         bands[0],
		geoTransform: landcover.GeoTransform(geoTransform),
		srid:         srid,
	}, nil
}

// Create creates a new single-band GeoTIFF name. Int64 arrays are stored as
// Float64, which represents integers exactly up to 2^53.
func (d *Driver) Create(name string, width, height int, dataType landcover.DataType, geoTransform landcover.GeoTransform, noData float64, srid int) (landcover.WritableDataset, error) {
	gdalDataType := godal.Int32
	if dataType == landcover.Int64 {
		gdalDataType = godal.Float64
	}
	dataset, err := godal.Create(godal.GTiff, name, 1, gdalDataType, width, height, godal.CreationOption(d.creationOptions...))
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			_ = dataset.Close()
		}
	}()
	if err := dataset.SetGeoTransform(geoTransform); err != nil {
		return nil, err
	}
	band := dataset.Bands()[0]
	if err := band.SetNoData(noData); err != nil {
		return nil, err
	}
	if srid != 0 {
		spatialRef, err := godal.NewSpatialRefFromEPSG(srid)
		if err != nil {
			return nil, err
		}
		defer spatialRef.Close()
		if err := dataset.SetSpatialRef(spatialRef); err != nil {
			return nil, err
		}
	}
	ok = true
	return &WritableDataset{
		dataset:  dataset,
		band:     band,
		dataType: dataType,
	}, nil
}

// Close closes d.
func (d *Dataset) Close() error {
	return d.dataset.Close()
}

// Size returns d's size in pixels.
func (d *Dataset) Size() (int, int) {
	structure := d.band.Structure()
	return structure.SizeX, structure.SizeY
}

// GeoTransform returns d's geotransform.
func (d *Dataset) GeoTransform() landcover.GeoTransform {
	return d.geoTransform
}

// NoData returns d's no-data value, if any.
func (d *Dataset) NoData() (float64, bool) {
	return d.band.NoData()
}

// SRID returns the EPSG code of d's CRS, or zero if it is not known.
func (d *Dataset) SRID() int {
	return d.srid
}

// ReadBand reads the pixels in window.
func (d *Dataset) ReadBand(ctx context.Context, window landcover.PixelWindow) (*landcover.Array, error) {
	structure := d.band.Structure()
	if err := window.CheckBounds(structure.SizeX, structure.SizeY); err != nil {
		return nil, err
	}
	array := landcover.NewArray(window.Width, window.Height)
	if window.Width == 0 || window.Height == 0 {
		return array, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch structure.DataType {
	case godal.Byte, godal.Int16, godal.UInt16, godal.Int32:
		buffer := make([]int32, window.Width*window.Height)
		if err := d.band.Read(window.X, window.Y, buffer, window.Width, window.Height); err != nil {
			return nil, err
		}
		for i, value := range buffer {
			array.Data[i] = int64(value)
		}
	default:
		array.DataType = landcover.Int64
		buffer := make([]float64, window.Width*window.Height)
		if err := d.band.Read(window.X, window.Y, buffer, window.Width, window.Height); err != nil {
			return nil, err
		}
		for i, value := range buffer {
			array.Data[i] = int64(value)
		}
	}
	return array, nil
}

// Histogram returns the histogram of d's values, excluding the no-data value.
// Byte bands use GDAL's histogram, other bands are read block row by block
// row.
func (d *Dataset) Histogram(ctx context.Context) (landcover.Histogram, error) {
	structure := d.band.Structure()
	if structure.DataType == godal.Byte {
		gdalHistogram, err := d.band.Histogram(godal.Intervals(256, -0.5, 255.5))
		if err != nil {
			return nil, err
		}
		var histogram landcover.Histogram
		for i := range gdalHistogram.Len() {
			if bucket := gdalHistogram.Bucket(i); bucket.Count != 0 {
				histogram = append(histogram, landcover.Bin{
					Value: int64(i),
					Count: bucket.Count,
				})
			}
		}
		return histogram, nil
	}

	counts := make(map[int64]uint64)
	blockLength := max(structure.BlockSizeY, 1)
	for y := 0; y < structure.SizeY; y += blockLength {
		array, err := d.ReadBand(ctx, landcover.PixelWindow{
			Y:      y,
			Width:  structure.SizeX,
			Height: min(blockLength, structure.SizeY-y),
		})
		if err != nil {
			return nil, err
		}
		for _, value := range array.Data {
			counts[value]++
		}
	}
	if noData, ok := d.band.NoData(); ok {
		delete(counts, int64(noData))
	}
	histogram := make(landcover.Histogram, 0, len(counts))
	for value, count := range counts {
		histogram = append(histogram, landcover.Bin{Value: value, Count: count})
	}
	slices.SortFunc(histogram, func(a, b landcover.Bin) int {
		return cmp.Compare(a.Value, b.Value)
	})
	return histogram, nil
}

// WriteBand writes array into window.
func (w *WritableDataset) WriteBand(window landcover.PixelWindow, array *landcover.Array) error {
	structure := w.band.Structure()
	if err := window.CheckBounds(structure.SizeX, structure.SizeY); err != nil {
		return err
	}
	if window.Width == 0 || window.Height == 0 {
		return nil
	}
	if w.dataType == landcover.Int64 {
		buffer := make([]float64, len(array.Data))
		for i, value := range array.Data {
			buffer[i] = float64(value)
		}
		return w.band.Write(window.X, window.Y, buffer, window.Width, window.Height)
	}
	buffer := make([]int32, len(array.Data))
	for i, value := range array.Data {
		if value < math.MinInt32 || math.MaxInt32 < value {
			return fmt.Errorf("%d: value overflows %s", value, landcover.Int32)
		}
		buffer[i] = int32(value)
	}
	return w.band.Write(window.X, window.Y, buffer, window.Width, window.Height)
}

// Close flushes and closes w.
func (w *WritableDataset) Close() error {
	return w.dataset.Close()
}
