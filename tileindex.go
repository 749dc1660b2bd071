package landcover

import (
	"iter"

	"github.com/paulmach/orb/geojson"
)

// TileIndex returns a GeoJSON FeatureCollection with one polygon feature per
// tile. Each feature has an index property.
func TileIndex(tiles iter.Seq[Envelope]) *geojson.FeatureCollection {
	featureCollection := geojson.NewFeatureCollection()
	index := 0
	for tile := range tiles {
		feature := geojson.NewFeature(tile.Bound().ToPolygon())
		feature.Properties["index"] = index
		featureCollection.Append(feature)
		index++
	}
	return featureCollection
}
