package landcover

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	arrayCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landcover_array_cache_hits_total",
		Help: "The total number of hits on the raster array cache",
	})
	arrayCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landcover_array_cache_misses_total",
		Help: "The total number of misses on the raster array cache",
	})
	blockCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landcover_block_cache_hits_total",
		Help: "The total number of hits on the GeoTIFF block cache",
	})
	blockCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landcover_block_cache_misses_total",
		Help: "The total number of misses on the GeoTIFF block cache",
	})
	tilesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landcover_tiles_written_total",
		Help: "The total number of tiles written",
	})
)
