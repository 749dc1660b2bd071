package landcover

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestRasterSelect(t *testing.T) {
	_, _, raster := newTestRaster(t, func(x, y int) int64 {
		return int64(x + 10*y)
	})

	selection, err := raster.Select(t.Context(), Window{XOffset: 60, YOffset: 30, Width: 90, Height: 60})
	assert.NoError(t, err)
	assert.Equal(t, Envelope{Left: 1060, Right: 1150, Bottom: 1910, Top: 1970}, selection.Envelope)
	assert.Equal(t, 30.0, selection.CellSize)
	assert.Equal(t, 5070, selection.SRID)
	assert.Equal(t, []int64{12, 13, 14, 22, 23, 24}, selection.Array.Data)
	assert.Equal(t, GeoTransform{1060, 30, 0, 1970, 0, -30}, selection.GeoTransform())

	whole, err := raster.Select(t.Context(), Window{})
	assert.NoError(t, err)
	assert.Equal(t, raster.Shape(), whole.Envelope)
	assert.Equal(t, 100, len(whole.Array.Data))
}

func TestSelectionKeep(t *testing.T) {
	_, _, raster := newTestRaster(t, func(x, y int) int64 {
		return int64(x % 3)
	})
	selection, err := raster.Select(t.Context(), Window{Width: 90, Height: 30})
	assert.NoError(t, err)

	kept := selection.Keep(1)
	assert.Equal(t, []int64{0, 1, 0}, kept.Array.Data)
	assert.Equal(t, []int64{0, 1, 2}, selection.Array.Data)
	assert.Equal(t, selection.Envelope, kept.Envelope)
}

func TestSelectionWrite(t *testing.T) {
	driver, _, raster := newTestRaster(t, func(x, y int) int64 {
		return int64(x * y)
	})
	selection, err := raster.Select(t.Context(), Window{XOffset: 30, YOffset: 60, Width: 60, Height: 30})
	assert.NoError(t, err)

	assert.NoError(t, selection.Write(driver, "out"))
	written := driver.written["out"]
	assert.True(t, written.closed)
	assert.Equal(t, selection.Array, written.array)
	assert.Equal(t, GeoTransform{1030, 30, 0, 1940, 0, -30}, written.geoTransform)
	assert.Equal(t, 0.0, written.noData)
	assert.Equal(t, 5070, written.srid)
}

func TestSelectionWriteGeoTIFFRoundTrip(t *testing.T) {
	_, _, raster := newTestRaster(t, func(x, y int) int64 {
		switch {
		case y == 0:
			return 255
		case x == 0:
			return -1
		default:
			return int64(x + y)
		}
	})
	selection, err := raster.Select(t.Context(), Window{Width: 150, Height: 90})
	assert.NoError(t, err)

	name := filepath.Join(t.TempDir(), "selection.tif")
	geoTIFFDriver := NewGeoTIFFDriver()
	assert.NoError(t, selection.Write(geoTIFFDriver, name))

	reopened, err := NewRaster(t.Context(), geoTIFFDriver, name, WithLogger(raster.logger))
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, reopened.Close())
	}()
	assert.Equal(t, selection.Envelope, reopened.Shape())
	assert.Equal(t, 5070, reopened.SRID())
	actual, err := reopened.Array(t.Context(), selection.Envelope)
	assert.NoError(t, err)
	assert.Equal(t, selection.Array, actual)
}

func TestSelectionWriteAllZero(t *testing.T) {
	_, _, raster := newTestRaster(t, func(x, y int) int64 {
		return 255
	})
	selection, err := raster.Select(t.Context(), Window{Width: 60, Height: 60})
	assert.NoError(t, err)

	name := filepath.Join(t.TempDir(), "zero.tif")
	assert.NoError(t, selection.Write(NewGeoTIFFDriver(), name))
	_, err = os.Stat(name)
	assert.NoError(t, err)

	dataset, err := NewGeoTIFFDriver().Open(name)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, dataset.Close())
	}()
	histogram, err := dataset.Histogram(t.Context())
	assert.NoError(t, err)
	assert.Equal(t, 0, len(histogram))
}

func TestRasterWriteTiles(t *testing.T) {
	driver, _, raster := newTestRaster(t, func(x, y int) int64 {
		return int64(x + 10*y)
	})

	count, err := raster.WriteTiles(t.Context(), driver, 180, func(index int) string {
		return fmt.Sprintf("tile%d", index)
	})
	assert.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, 4, len(driver.written))

	envelopes := slices.Collect(raster.TileEnvelopes(180))
	assert.Equal(t, []Envelope{
		{Left: 1000, Right: 1180, Bottom: 1820, Top: 2000},
		{Left: 1000, Right: 1180, Bottom: 1700, Top: 1820},
		{Left: 1180, Right: 1300, Bottom: 1820, Top: 2000},
		{Left: 1180, Right: 1300, Bottom: 1700, Top: 1820},
	}, envelopes)
	for i, envelope := range envelopes {
		written := driver.written[fmt.Sprintf("tile%d", i)]
		assert.Equal(t, NewNorthUpGeoTransform(envelope.Left, envelope.Top, 30), written.geoTransform)
		assert.Equal(t, int(envelope.Width()/30), written.array.Width)
		assert.Equal(t, int(envelope.Height()/30), written.array.Height)
	}
	assert.Equal(t, int64(0), driver.written["tile0"].array.At(0, 0))
	assert.Equal(t, int64(66), driver.written["tile3"].array.At(0, 0))

	count, err = raster.WriteTiles(t.Context(), driver, MaxTileSize, func(index int) string {
		return "whole"
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, raster.Shape(), raster.WindowEnvelope(Window{}))
}

func TestRasterWriteTilesPartialPixels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	driver, _, raster := newTestRaster(t, func(x, y int) int64 { return 1 }, WithLogger(logger))
	hook.Reset()

	count, err := raster.WriteTiles(t.Context(), driver, 100, func(index int) string {
		return fmt.Sprintf("tile%d", index)
	})
	assert.NoError(t, err)
	assert.Equal(t, 9, count)
	assert.Equal(t, 3, driver.written["tile0"].array.Width)
	var messages []string
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.DebugLevel {
			messages = append(messages, entry.Message)
		}
	}
	assert.Equal(t, []string{"tile size is not a multiple of cell size, partial pixels at tile edges are dropped"}, messages)

	hook.Reset()
	_, err = raster.WriteTiles(t.Context(), driver, 150, func(index int) string {
		return fmt.Sprintf("tile%d", index)
	})
	assert.NoError(t, err)
	for _, entry := range hook.AllEntries() {
		assert.NotEqual(t, logrus.DebugLevel, entry.Level)
	}
}
