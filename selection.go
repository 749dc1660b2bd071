package landcover

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/sirupsen/logrus"
)

// A Selection is a rectangular sub-region of a raster and its pixels.
type Selection struct {
	Envelope Envelope
	CellSize float64
	SRID     int
	Array    *Array
}

// A TileNameFunc returns the name of the index'th tile.
type TileNameFunc func(index int) string

// Select returns the selection of r at window, given in world units from r's
// top-left corner. The zero Window selects the whole of r.
func (r *Raster) Select(ctx context.Context, window Window) (*Selection, error) {
	return r.SelectEnvelope(ctx, r.WindowEnvelope(window))
}

// WindowEnvelope returns the envelope of window. The zero Window is the whole
// of r.
func (r *Raster) WindowEnvelope(window Window) Envelope {
	if window == (Window{}) {
		return r.shape
	}
	left := r.shape.Left + float64(window.XOffset)
	top := r.shape.Top - float64(window.YOffset)
	return Envelope{
		Left:   left,
		Right:  left + float64(window.Width),
		Bottom: top - float64(window.Height),
		Top:    top,
	}
}

// TileEnvelopes returns the envelopes of the tiles written by
// [Raster.WriteTiles], in the same order.
func (r *Raster) TileEnvelopes(tileSize int) iter.Seq[Envelope] {
	return func(yield func(Envelope) bool) {
		for window := range MakeTiles(int(r.shape.Width()), int(r.shape.Height()), tileSize) {
			if !yield(r.WindowEnvelope(window)) {
				return
			}
		}
	}
}

// SelectEnvelope returns the selection of r within envelope.
func (r *Raster) SelectEnvelope(ctx context.Context, envelope Envelope) (*Selection, error) {
	array, err := r.Array(ctx, envelope)
	if err != nil {
		return nil, err
	}
	return &Selection{
		Envelope: envelope,
		CellSize: r.cellSize,
		SRID:     r.SRID(),
		Array:    array,
	}, nil
}

// Keep returns a copy of s in which every value not in values is replaced by
// zero.
func (s *Selection) Keep(values ...int64) *Selection {
	return &Selection{
		Envelope: s.Envelope,
		CellSize: s.CellSize,
		SRID:     s.SRID,
		Array:    s.Array.Keep(values...),
	}
}

// GeoTransform returns the geotransform of s's top-left corner.
func (s *Selection) GeoTransform() GeoTransform {
	return NewNorthUpGeoTransform(s.Envelope.Left, s.Envelope.Top, s.CellSize)
}

// Write writes s to a new single-band raster name with no-data value zero.
func (s *Selection) Write(driver Driver, name string) (err error) {
	width, height := s.Array.Width, s.Array.Height
	dataset, err := driver.Create(name, width, height, s.Array.DataType, s.GeoTransform(), 0, s.SRID)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, dataset.Close())
	}()
	return dataset.WriteBand(PixelWindow{Width: width, Height: height}, s.Array)
}

// WriteTiles splits r into square tiles of tileSize world units and writes
// each one with driver to the name returned by nameFunc. It stops at the
// first error.
func (r *Raster) WriteTiles(ctx context.Context, driver Driver, tileSize int, nameFunc TileNameFunc) (int, error) {
	xSize, ySize := int(r.shape.Width()), int(r.shape.Height())
	if tileSize > 0 && math.Remainder(float64(tileSize), r.cellSize) != 0 {
		r.logger.WithFields(logrus.Fields{
			"tileSize": tileSize,
			"cellSize": r.cellSize,
		}).Debug("tile size is not a multiple of cell size, partial pixels at tile edges are dropped")
	}
	count := 0
	for window := range MakeTiles(xSize, ySize, tileSize) {
		selection, err := r.Select(ctx, window)
		if err != nil {
			return count, err
		}
		name := nameFunc(count)
		r.logger.WithFields(logrus.Fields{
			"tile":   count,
			"window": fmt.Sprintf("%+v", window),
			"name":   name,
		}).Info("writing tile")
		if err := selection.Write(driver, name); err != nil {
			return count, err
		}
		tilesWritten.Inc()
		count++
	}
	return count, nil
}
