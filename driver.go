package landcover

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned when a read or write window does not lie
	// within a band.
	ErrOutOfBounds = errors.New("window out of bounds")

	// ErrUnsupported is returned for raster layouts that are not supported.
	ErrUnsupported = errors.ErrUnsupported
)

// A PixelWindow is a rectangle of pixels in a band.
type PixelWindow struct {
	X      int
	Y      int
	Width  int
	Height int
}

// A Bin is a histogram bin.
type Bin struct {
	Value int64
	Count uint64
}

// A Histogram is a list of bins with non-zero counts, sorted by value.
type Histogram []Bin

// A Driver opens and creates single-band rasters.
type Driver interface {
	Open(name string) (Dataset, error)
	Create(name string, width, height int, dataType DataType, geoTransform GeoTransform, noData float64, srid int) (WritableDataset, error)
}

// A Dataset is an open single-band raster.
type Dataset interface {
	Size() (int, int)
	GeoTransform() GeoTransform
	NoData() (float64, bool)
	SRID() int
	ReadBand(ctx context.Context, window PixelWindow) (*Array, error)
	Histogram(ctx context.Context) (Histogram, error)
	Close() error
}

// A WritableDataset is a newly created single-band raster. Close flushes all
// writes.
type WritableDataset interface {
	WriteBand(window PixelWindow, array *Array) error
	Close() error
}

// Values returns the values in h.
func (h Histogram) Values() []int64 {
	values := make([]int64, len(h))
	for i, bin := range h {
		values[i] = bin.Value
	}
	return values
}

// CheckBounds returns an error wrapping ErrOutOfBounds if w does not lie
// within a band of width by height pixels.
func (w PixelWindow) CheckBounds(width, height int) error {
	if w.X < 0 || w.Y < 0 || w.Width < 0 || w.Height < 0 ||
		w.X+w.Width > width || w.Y+w.Height > height {
		return fmt.Errorf("%+v: %w", w, ErrOutOfBounds)
	}
	return nil
}
