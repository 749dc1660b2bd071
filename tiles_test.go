package landcover

import (
	"slices"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestMakeTiles(t *testing.T) {
	for _, tc := range []struct {
		name         string
		xSize, ySize int
		tileSize     int
		expected     []Window
	}{
		{
			name:     "remainder",
			xSize:    100,
			ySize:    100,
			tileSize: 60,
			expected: []Window{
				{0, 0, 60, 60},
				{0, 60, 60, 40},
				{60, 0, 40, 60},
				{60, 60, 40, 40},
			},
		},
		{
			name:     "exact",
			xSize:    20,
			ySize:    10,
			tileSize: 10,
			expected: []Window{
				{0, 0, 10, 10},
				{10, 0, 10, 10},
			},
		},
		{
			name:     "larger_than_raster",
			xSize:    30,
			ySize:    20,
			tileSize: 100,
			expected: []Window{
				{0, 0, 30, 20},
			},
		},
		{
			name:     "max",
			xSize:    30,
			ySize:    20,
			tileSize: MaxTileSize,
			expected: []Window{
				{0, 0, 30, 20},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, slices.Collect(MakeTiles(tc.xSize, tc.ySize, tc.tileSize)))
		})
	}
}

func TestMakeTilesPartition(t *testing.T) {
	for _, tc := range []struct {
		xSize, ySize, tileSize int
	}{
		{100, 100, 60},
		{7, 13, 3},
		{1, 1, 1},
		{90, 30, 30},
		{31, 29, 10},
	} {
		covered := make([]int, tc.xSize*tc.ySize)
		for window := range MakeTiles(tc.xSize, tc.ySize, tc.tileSize) {
			assert.True(t, window.Width > 0)
			assert.True(t, window.Height > 0)
			assert.True(t, window.Width <= tc.tileSize)
			assert.True(t, window.Height <= tc.tileSize)
			for y := window.YOffset; y < window.YOffset+window.Height; y++ {
				for x := window.XOffset; x < window.XOffset+window.Width; x++ {
					covered[y*tc.xSize+x]++
				}
			}
		}
		for _, count := range covered {
			assert.Equal(t, 1, count)
		}
	}
}

func TestEnvelopeTiles(t *testing.T) {
	e := Envelope{Left: 0, Right: 100, Bottom: 0, Top: 100}
	assert.Equal(t, []Envelope{
		{0, 60, 0, 60},
		{0, 60, 60, 100},
		{60, 100, 0, 60},
		{60, 100, 60, 100},
	}, slices.Collect(e.Tiles(60)))

	assert.Equal(t, []Envelope{e}, slices.Collect(e.Tiles(MaxTileSize)))
}

func TestEnvelopeTilesPartition(t *testing.T) {
	e := Envelope{Left: -1000, Right: 1570, Bottom: 200, Top: 2230}
	area := 0.0
	var tiles []Envelope
	for tile := range e.Tiles(300) {
		overlap, ok := e.Overlap(tile)
		assert.True(t, ok)
		assert.Equal(t, tile, overlap)
		area += tile.Area()
		tiles = append(tiles, tile)
	}
	assert.Equal(t, e.Area(), area)
	for i, a := range tiles {
		for _, b := range tiles[i+1:] {
			if overlap, ok := a.Overlap(b); ok {
				assert.Equal(t, 0.0, overlap.Area())
			}
		}
	}
}

func TestEnvelopeTilesProgress(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e := Envelope{Left: 0, Right: 20, Bottom: 0, Top: 10}

	tiles := slices.Collect(e.Tiles(10, WithProgress(logger)))
	assert.Equal(t, 2, len(tiles))
	entries := hook.AllEntries()
	assert.Equal(t, 2, len(entries))
	assert.Equal(t, "Processing tile 1 of 2", entries[0].Message)
	assert.Equal(t, "Processing tile 2 of 2", entries[1].Message)

	hook.Reset()
	_ = slices.Collect(e.Tiles(MaxTileSize, WithProgress(logger)))
	assert.Equal(t, 0, len(hook.AllEntries()))
}

func TestEnvelopeTilesStop(t *testing.T) {
	e := Envelope{Left: 0, Right: 100, Bottom: 0, Top: 100}
	count := 0
	for range e.Tiles(10) {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}
