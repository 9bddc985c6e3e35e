package assembler

import (
	"github.com/paulmach/orb"

	"github.com/gbif/mvt-tile-server/internal/projection"
	"github.com/gbif/mvt-tile-server/internal/search"
	"github.com/gbif/mvt-tile-server/internal/vectortile"
)

// bucketToFeature turns one search-backend geogrid bucket into a
// polygon feature in tile-local pixel space, mirroring how the
// original service's ad-hoc heatmap rendered an aggregation bucket as
// a rectangle rather than re-deriving the store's point geometry.
func bucketToFeature(b search.Bucket, addr projection.TileAddress, tileSize, bufferSize int) vectortile.Feature {
	minGX, minGY, _ := projection.ToGlobalPixelXY(b.MaxLat, b.MinLng, addr.Z, projection.WGS84, tileSize)
	maxGX, maxGY, _ := projection.ToGlobalPixelXY(b.MinLat, b.MaxLng, addr.Z, projection.WGS84, tileSize)

	minLX, minLY := projection.ToTileLocalXY(minGX, minGY, addr.X, addr.Y, tileSize, bufferSize)
	maxLX, maxLY := projection.ToTileLocalXY(maxGX, maxGY, addr.X, addr.Y, tileSize, bufferSize)

	ring := orb.Ring{
		{minLX, minLY},
		{maxLX, minLY},
		{maxLX, maxLY},
		{minLX, maxLY},
		{minLX, minLY},
	}

	return vectortile.Feature{
		Layer:    "occurrence",
		Geometry: orb.Polygon{ring},
		Attrs:    map[string]interface{}{"total": b.DocCount},
	}
}
