package landcover

// A GeoTransform is an affine transformation from pixel coordinates to world
// coordinates, in GDAL order: origin x, pixel width, row rotation, origin y,
// column rotation, pixel height.
type GeoTransform [6]float64

// NewNorthUpGeoTransform returns the GeoTransform of a north-up raster whose
// top-left corner is at (left, top) and whose square pixels have edge length
// cellSize.
func NewNorthUpGeoTransform(left, top, cellSize float64) GeoTransform {
	return GeoTransform{left, cellSize, 0, top, 0, -cellSize}
}

// Origin returns the world coordinates of the top-left corner.
func (g GeoTransform) Origin() (float64, float64) {
	return g[0], g[3]
}

// PixelSize returns the pixel width and height. The height is negative for
// north-up rasters.
func (g GeoTransform) PixelSize() (float64, float64) {
	return g[1], g[5]
}

// IsNorthUp returns whether g has no rotation terms and rows run from north
// to south.
func (g GeoTransform) IsNorthUp() bool {
	return g[2] == 0 && g[4] == 0 && g[1] > 0 && g[5] < 0
}

// Apply returns the world coordinates of pixel coordinate (x, y).
func (g GeoTransform) Apply(x, y float64) (float64, float64) {
	return g[0] + x*g[1] + y*g[2], g[3] + x*g[4] + y*g[5]
}
