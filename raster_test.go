package landcover

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/sirupsen/logrus/hooks/test"
)

// A fakeDataset is an in-memory Dataset.
type fakeDataset struct {
	array        *Array
	geoTransform GeoTransform
	srid         int
	reads        int
	closed       bool
}

// A fakeDriver is a Driver that serves and records in-memory datasets.
type fakeDriver struct {
	datasets map[string]*fakeDataset
	written  map[string]*fakeWritableDataset
}

type fakeWritableDataset struct {
	array        *Array
	geoTransform GeoTransform
	noData       float64
	srid         int
	closed       bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		datasets: make(map[string]*fakeDataset),
		written:  make(map[string]*fakeWritableDataset),
	}
}

func (d *fakeDriver) Open(name string) (Dataset, error) {
	dataset, ok := d.datasets[name]
	if !ok {
		return nil, errors.New(name + ": not found")
	}
	return dataset, nil
}

func (d *fakeDriver) Create(name string, width, height int, dataType DataType, geoTransform GeoTransform, noData float64, srid int) (WritableDataset, error) {
	array := NewArray(width, height)
	array.DataType = dataType
	dataset := &fakeWritableDataset{
		array:        array,
		geoTransform: geoTransform,
		noData:       noData,
		srid:         srid,
	}
	d.written[name] = dataset
	return dataset, nil
}

func (d *fakeDataset) Size() (int, int)           { return d.array.Width, d.array.Height }
func (d *fakeDataset) GeoTransform() GeoTransform { return d.geoTransform }
func (d *fakeDataset) NoData() (float64, bool)    { return 0, false }
func (d *fakeDataset) SRID() int                  { return d.srid }

func (d *fakeDataset) ReadBand(ctx context.Context, window PixelWindow) (*Array, error) {
	if err := window.CheckBounds(d.array.Width, d.array.Height); err != nil {
		return nil, err
	}
	d.reads++
	array := NewArray(window.Width, window.Height)
	for y := range window.Height {
		for x := range window.Width {
			array.Set(x, y, d.array.At(window.X+x, window.Y+y))
		}
	}
	return array, nil
}

func (d *fakeDataset) Histogram(ctx context.Context) (Histogram, error) {
	counts := make(map[int64]uint64)
	for _, value := range d.array.Data {
		counts[value]++
	}
	return newHistogram(counts), nil
}

func (d *fakeDataset) Close() error {
	d.closed = true
	return nil
}

func (d *fakeWritableDataset) WriteBand(window PixelWindow, array *Array) error {
	if err := window.CheckBounds(d.array.Width, d.array.Height); err != nil {
		return err
	}
	for y := range window.Height {
		for x := range window.Width {
			d.array.Set(window.X+x, window.Y+y, array.At(x, y))
		}
	}
	return nil
}

func (d *fakeWritableDataset) Close() error {
	d.closed = true
	return nil
}

// newTestRaster returns a Raster of a 10x10 dataset with 30 unit cells whose
// top-left corner is at (1000, 2000).
func newTestRaster(t *testing.T, f func(x, y int) int64, options ...RasterOption) (*fakeDriver, *fakeDataset, *Raster) {
	t.Helper()
	driver := newFakeDriver()
	dataset := &fakeDataset{
		array:        newTestArray(10, 10, f),
		geoTransform: NewNorthUpGeoTransform(1000, 2000, 30),
		srid:         5070,
	}
	driver.datasets["test"] = dataset
	logger, _ := test.NewNullLogger()
	raster, err := NewRaster(t.Context(), driver, "test", append([]RasterOption{WithLogger(logger)}, options...)...)
	assert.NoError(t, err)
	return driver, dataset, raster
}

func TestNewRaster(t *testing.T) {
	_, dataset, raster := newTestRaster(t, func(x, y int) int64 {
		return int64([]int{1, 5, 24, 255}[(x+y)%4])
	})

	assert.Equal(t, "test", raster.Name())
	assert.Equal(t, 30.0, raster.CellSize())
	assert.Equal(t, Envelope{Left: 1000, Right: 1300, Bottom: 1700, Top: 2000}, raster.Shape())
	width, height := raster.Size()
	assert.Equal(t, 10, width)
	assert.Equal(t, 10, height)
	assert.Equal(t, int64(255), raster.NoData())
	assert.Equal(t, int64(255), raster.MaxValue())
	assert.Equal(t, int64(1000), raster.Precision())
	assert.Equal(t, []int64{1, 5, 24, 255}, raster.Values())
	assert.Equal(t, 4, raster.NClasses())
	assert.Equal(t, 4, len(raster.Histogram()))
	assert.Equal(t, 5070, raster.SRID())

	assert.NoError(t, raster.Close())
	assert.True(t, dataset.closed)
}

func TestNewRasterErrors(t *testing.T) {
	driver := newFakeDriver()
	dataset := &fakeDataset{
		array:        NewArray(2, 2),
		geoTransform: GeoTransform{0, 1, 0.1, 0, 0, -1},
	}
	driver.datasets["rotated"] = dataset

	_, err := NewRaster(t.Context(), driver, "rotated")
	assert.IsError(t, err, ErrUnsupported)
	assert.True(t, dataset.closed)

	_, err = NewRaster(t.Context(), driver, "missing")
	assert.Error(t, err)
}

func TestPrecision(t *testing.T) {
	for _, tc := range []struct {
		value    int64
		expected int64
	}{
		{value: -5, expected: 1},
		{value: 0, expected: 1},
		{value: 1, expected: 10},
		{value: 9, expected: 10},
		{value: 10, expected: 100},
		{value: 255, expected: 1000},
		{value: 999, expected: 1000},
		{value: 1000, expected: 10000},
		{value: 10000, expected: 100000},
		{value: 1e18 - 1, expected: 1e18},
		{value: 1e18, expected: math.MaxInt64},
		{value: math.MaxInt64, expected: math.MaxInt64},
	} {
		assert.Equal(t, tc.expected, precision(tc.value))
	}
}

func TestRasterPixelWindow(t *testing.T) {
	_, _, raster := newTestRaster(t, func(x, y int) int64 { return 1 })

	assert.Equal(t, PixelWindow{X: 0, Y: 0, Width: 10, Height: 10}, raster.PixelWindow(raster.Shape()))
	assert.Equal(t, PixelWindow{X: 2, Y: 3, Width: 4, Height: 5}, raster.PixelWindow(Envelope{
		Left:   1060,
		Right:  1180,
		Bottom: 1760,
		Top:    1910,
	}))
	assert.Equal(t, PixelWindow{X: -1, Y: 0, Width: 2, Height: 1}, raster.PixelWindow(Envelope{
		Left:   970,
		Right:  1030,
		Bottom: 1970,
		Top:    2000,
	}))
}

func TestRasterArray(t *testing.T) {
	_, dataset, raster := newTestRaster(t, func(x, y int) int64 {
		switch {
		case x == 0:
			return 255
		case x == 1:
			return -3
		default:
			return int64(y)
		}
	})
	ctx := t.Context()
	envelope := Envelope{Left: 1000, Right: 1090, Bottom: 1940, Top: 2000}

	array, err := raster.Array(ctx, envelope)
	assert.NoError(t, err)
	assert.Equal(t, &Array{
		Width:    3,
		Height:   2,
		DataType: Int32,
		Data:     []int64{0, 0, 0, 0, 0, 1},
	}, array)
	assert.Equal(t, 1, dataset.reads)

	t.Run("cached", func(t *testing.T) {
		cached, err := raster.Array(ctx, envelope)
		assert.NoError(t, err)
		assert.True(t, array == cached)
		assert.Equal(t, 1, dataset.reads)
	})

	t.Run("zero_min", func(t *testing.T) {
		unclamped, err := raster.Array(ctx, envelope, WithZeroMin(false))
		assert.NoError(t, err)
		assert.Equal(t, []int64{0, -3, 0, 0, -3, 1}, unclamped.Data)
		assert.Equal(t, 2, dataset.reads)
	})

	t.Run("replaced", func(t *testing.T) {
		other := Envelope{Left: 1060, Right: 1090, Bottom: 1940, Top: 1970}
		otherArray, err := raster.Array(ctx, other)
		assert.NoError(t, err)
		assert.Equal(t, []int64{1}, otherArray.Data)
		assert.Equal(t, 3, dataset.reads)

		reread, err := raster.Array(ctx, envelope)
		assert.NoError(t, err)
		assert.Equal(t, array, reread)
		assert.Equal(t, 4, dataset.reads)
	})

	t.Run("out_of_bounds", func(t *testing.T) {
		_, err := raster.Array(ctx, Envelope{Left: 1200, Right: 1400, Bottom: 1900, Top: 2000})
		assert.IsError(t, err, ErrOutOfBounds)
	})
}

func TestRasterArrayCacheSize(t *testing.T) {
	_, dataset, raster := newTestRaster(t, func(x, y int) int64 { return 1 }, WithArrayCacheSize(2))
	ctx := t.Context()
	a := Envelope{Left: 1000, Right: 1030, Bottom: 1970, Top: 2000}
	b := Envelope{Left: 1030, Right: 1060, Bottom: 1970, Top: 2000}

	for _, envelope := range []Envelope{a, b, a, b} {
		_, err := raster.Array(ctx, envelope)
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, dataset.reads)
}

func TestRasterArrayWidening(t *testing.T) {
	_, _, raster := newTestRaster(t, func(x, y int) int64 {
		return 10000 + int64(x)
	})
	assert.Equal(t, int64(100000), raster.Precision())

	array, err := raster.Array(t.Context(), raster.Shape())
	assert.NoError(t, err)
	assert.Equal(t, Int64, array.DataType)
}

func TestRasterNoData(t *testing.T) {
	_, _, raster := newTestRaster(t, func(x, y int) int64 {
		if x < 5 {
			return 127
		}
		return 3
	}, WithNoData(127))

	array, err := raster.Array(t.Context(), raster.Shape())
	assert.NoError(t, err)
	assert.Equal(t, []ValueCount{
		{Value: 0, Count: 50},
		{Value: 3, Count: 50},
	}, array.Unique())
}
