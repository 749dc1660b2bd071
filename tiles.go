package landcover

import (
	"iter"

	"github.com/sirupsen/logrus"
)

// MaxTileSize is the tile size that yields a single tile covering the whole
// envelope.
const MaxTileSize = 0

// A Window is a rectangle given as offsets from the top-left corner of a
// raster, in world units.
type Window struct {
	XOffset int
	YOffset int
	Width   int
	Height  int
}

// A TilesOption sets an option on [Envelope.Tiles].
type TilesOption func(*tilesOptions)

type tilesOptions struct {
	logger logrus.FieldLogger
}

// WithProgress logs a progress message to logger before each tile is
// yielded. Nothing is logged if there is only one tile.
func WithProgress(logger logrus.FieldLogger) TilesOption {
	return func(o *tilesOptions) {
		o.logger = logger
	}
}

// Tiles returns the tiles of size tileSize that partition e, in row-major
// order with x outer and y inner. Tiles in the last column and row are
// clipped to e. If tileSize is MaxTileSize then e itself is the only tile.
func (e Envelope) Tiles(tileSize float64, options ...TilesOption) iter.Seq[Envelope] {
	var o tilesOptions
	for _, option := range options {
		option(&o)
	}
	return func(yield func(Envelope) bool) {
		if tileSize <= MaxTileSize {
			yield(e)
			return
		}
		xs := boundaries(e.Left, e.Right, tileSize)
		ys := boundaries(e.Bottom, e.Top, tileSize)
		total := (len(xs) - 1) * (len(ys) - 1)
		counter := 0
		for i := range len(xs) - 1 {
			for j := range len(ys) - 1 {
				counter++
				if o.logger != nil && total > 1 {
					o.logger.Infof("Processing tile %d of %d", counter, total)
				}
				tile := Envelope{
					Left:   xs[i],
					Right:  xs[i+1],
					Bottom: ys[j],
					Top:    ys[j+1],
				}
				if !yield(tile) {
					return
				}
			}
		}
	}
}

// MakeTiles returns the windows of size tileSize that partition a raster of
// xSize by ySize world units, in row-major order with x outer and y inner.
// Windows in the last column and row are clipped. A tileSize of less than or
// equal to zero yields a single window.
func MakeTiles(xSize, ySize, tileSize int) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		if tileSize <= 0 {
			tileSize = max(xSize, ySize)
		}
		xs := intBoundaries(xSize, tileSize)
		ys := intBoundaries(ySize, tileSize)
		for i := range len(xs) - 1 {
			for j := range len(ys) - 1 {
				window := Window{
					XOffset: xs[i],
					YOffset: ys[j],
					Width:   xs[i+1] - xs[i],
					Height:  ys[j+1] - ys[j],
				}
				if !yield(window) {
					return
				}
			}
		}
	}
}

// boundaries returns lo, lo+step, lo+2*step, ... up to but excluding hi,
// followed by hi.
func boundaries(lo, hi, step float64) []float64 {
	var result []float64
	for k := 0; ; k++ {
		value := lo + float64(k)*step
		if value >= hi {
			break
		}
		result = append(result, value)
	}
	return append(result, hi)
}

func intBoundaries(size, step int) []int {
	var result []int
	for value := 0; value < size; value += step {
		result = append(result, value)
	}
	return append(result, max(size, 0))
}
