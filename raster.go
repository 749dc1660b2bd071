package landcover

import (
	"context"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// defaultNoData is the no-data value of land cover rasters that do not
// declare one.
const defaultNoData = 255

// pixelEpsilon absorbs floating point error when converting world distances
// to pixel counts.
const pixelEpsilon = 1e-9

// A Raster is an open single-band land cover raster.
type Raster struct {
	dataset        Dataset
	name           string
	logger         logrus.FieldLogger
	noData         int64
	cellSize       float64
	shape          Envelope
	width          int
	height         int
	maxValue       int64
	precision      int64
	values         []int64
	histogram      Histogram
	arrayCacheSize int
	arrayCache     *lru.Cache[arrayCacheKey, *Array]
}

// A RasterOption sets an option on a Raster.
type RasterOption func(*Raster)

// An ArrayOption sets an option on [Raster.Array].
type ArrayOption func(*arrayOptions)

type arrayOptions struct {
	zeroMin bool
}

// arrayCacheKey identifies a cached array. Envelopes are compared by value.
type arrayCacheKey struct {
	envelope Envelope
	zeroMin  bool
}

// WithNoData sets the value that is replaced by zero when reading arrays.
func WithNoData(noData int64) RasterOption {
	return func(r *Raster) {
		r.noData = noData
	}
}

// WithArrayCacheSize sets the number of arrays that are cached. The default
// of one means that reading an array for a different envelope replaces the
// cached array.
func WithArrayCacheSize(arrayCacheSize int) RasterOption {
	return func(r *Raster) {
		r.arrayCacheSize = arrayCacheSize
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) RasterOption {
	return func(r *Raster) {
		r.logger = logger
	}
}

// WithZeroMin sets whether negative values are replaced by zero. The default
// is true.
func WithZeroMin(zeroMin bool) ArrayOption {
	return func(o *arrayOptions) {
		o.zeroMin = zeroMin
	}
}

// NewRaster opens name with driver.
func NewRaster(ctx context.Context, driver Driver, name string, options ...RasterOption) (*Raster, error) {
	dataset, err := driver.Open(name)
	if err != nil {
		return nil, err
	}
	r, err := newRaster(ctx, dataset, name, options...)
	if err != nil {
		_ = dataset.Close()
		return nil, err
	}
	return r, nil
}

func newRaster(ctx context.Context, dataset Dataset, name string, options ...RasterOption) (*Raster, error) {
	r := &Raster{
		dataset:        dataset,
		name:           name,
		logger:         logrus.StandardLogger(),
		noData:         defaultNoData,
		arrayCacheSize: 1,
	}
	for _, option := range options {
		option(r)
	}

	geoTransform := dataset.GeoTransform()
	if !geoTransform.IsNorthUp() {
		return nil, fmt.Errorf("%s: geotransform %v: %w", name, geoTransform, ErrUnsupported)
	}
	left, top := geoTransform.Origin()
	r.cellSize, _ = geoTransform.PixelSize()
	r.width, r.height = dataset.Size()
	right, bottom := geoTransform.Apply(float64(r.width), float64(r.height))
	r.shape = Envelope{
		Left:   left,
		Right:  right,
		Bottom: bottom,
		Top:    top,
	}

	var err error
	r.histogram, err = dataset.Histogram(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	r.values = r.histogram.Values()
	if len(r.values) > 0 {
		r.maxValue = r.values[len(r.values)-1]
	}
	r.precision = precision(r.maxValue)

	r.arrayCache, err = lru.NewWithEvict(max(r.arrayCacheSize, 1), func(key arrayCacheKey, _ *Array) {
		r.logger.WithField("envelope", key.envelope).Debug("evicted array")
	})
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"name":     name,
		"shape":    r.shape,
		"cellSize": r.cellSize,
		"classes":  len(r.values),
	}).Debug("opened raster")

	return r, nil
}

// Close closes r.
func (r *Raster) Close() error {
	r.arrayCache.Purge()
	return r.dataset.Close()
}

// Name returns r's name.
func (r *Raster) Name() string {
	return r.name
}

// CellSize returns the edge length of r's pixels in world units.
func (r *Raster) CellSize() float64 {
	return r.cellSize
}

// Shape returns the envelope covering the whole of r.
func (r *Raster) Shape() Envelope {
	return r.shape
}

// Size returns r's size in pixels.
func (r *Raster) Size() (int, int) {
	return r.width, r.height
}

// NoData returns the value that is replaced by zero when reading arrays.
func (r *Raster) NoData() int64 {
	return r.noData
}

// MaxValue returns the largest value in r.
func (r *Raster) MaxValue() int64 {
	return r.maxValue
}

// Precision returns the smallest power of ten greater than r's largest value.
func (r *Raster) Precision() int64 {
	return r.precision
}

// Values returns the sorted distinct values that occur in r.
func (r *Raster) Values() []int64 {
	return r.values
}

// NClasses returns the number of distinct values that occur in r.
func (r *Raster) NClasses() int {
	return len(r.values)
}

// Histogram returns r's histogram.
func (r *Raster) Histogram() Histogram {
	return r.histogram
}

// SRID returns the EPSG code of r's CRS, or zero if it is not known.
func (r *Raster) SRID() int {
	return r.dataset.SRID()
}

// PixelWindow returns the pixel window corresponding to envelope.
func (r *Raster) PixelWindow(envelope Envelope) PixelWindow {
	return PixelWindow{
		X:      r.pixels(envelope.Left - r.shape.Left),
		Y:      r.pixels(r.shape.Top - envelope.Top),
		Width:  r.pixels(envelope.Width()),
		Height: r.pixels(envelope.Height()),
	}
}

// Array returns the pixels of r within envelope. No-data values are replaced
// by zero and, unless disabled with WithZeroMin(false), so are negative
// values. Arrays are cached and shared between calls: callers must Clone the
// result before modifying it.
func (r *Raster) Array(ctx context.Context, envelope Envelope, options ...ArrayOption) (*Array, error) {
	o := arrayOptions{
		zeroMin: true,
	}
	for _, option := range options {
		option(&o)
	}

	key := arrayCacheKey{
		envelope: envelope,
		zeroMin:  o.zeroMin,
	}
	if array, ok := r.arrayCache.Get(key); ok {
		arrayCacheHits.Inc()
		return array, nil
	}
	arrayCacheMisses.Inc()

	array, err := r.dataset.ReadBand(ctx, r.PixelWindow(envelope))
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", r.name, envelope, err)
	}
	array.Replace(r.noData, 0)
	if o.zeroMin {
		array.ClampNegative()
	}
	if r.precision > 10000 {
		array.DataType = Int64
	}
	r.arrayCache.Add(key, array)
	return array, nil
}

func (r *Raster) pixels(distance float64) int {
	return int(math.Floor(distance/r.cellSize + pixelEpsilon))
}

// precision returns the smallest power of ten that is greater than value, or
// one if value is not positive. It returns math.MaxInt64 if that power of ten
// does not fit in an int64.
func precision(value int64) int64 {
	result := int64(1)
	for result <= value {
		if result > math.MaxInt64/10 {
			return math.MaxInt64
		}
		result *= 10
	}
	return result
}
