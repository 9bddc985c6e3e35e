package binning

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/gbif/mvt-tile-server/internal/projection"
	"github.com/gbif/mvt-tile-server/internal/vectortile"
)

// SquareBin aggregates features into a regular grid of CellSize pixel
// squares, anchored at global pixel (0,0) for the same cross-tile
// stability HexBin relies on.
type SquareBin struct {
	TileSize int
	CellSize int
}

func (s SquareBin) size() float64 {
	if s.CellSize <= 0 {
		return 32
	}
	return float64(s.CellSize)
}

func (s SquareBin) Bin(features []vectortile.Feature, addr projection.TileAddress) ([]vectortile.Feature, error) {
	size := s.size()
	cells := map[string]*cellAccum{}

	originX := float64(addr.X) * float64(s.TileSize)
	originY := float64(addr.Y) * float64(s.TileSize)

	for _, f := range features {
		lx, ly, ok := pointOf(f.Geometry)
		if !ok {
			continue
		}
		gx, gy := originX+lx, originY+ly

		col := math.Floor(gx / size)
		row := math.Floor(gy / size)

		minGX, minGY := col*size, row*size
		minLX, minLY := minGX-originX, minGY-originY
		maxLX, maxLY := minLX+size, minLY+size

		ring := orb.Ring{
			{minLX, minLY},
			{maxLX, minLY},
			{maxLX, maxLY},
			{minLX, maxLY},
			{minLX, minLY},
		}
		id := cellID(originX+ring[0][0], originY+ring[0][1])

		acc, ok := cells[id]
		if !ok {
			acc = newAccum()
			acc.id = id
			acc.geometry = orb.Polygon{ring}
			cells[id] = acc
		}
		acc.add(f)
	}

	return sortedFeatures(cells, "occurrence"), nil
}
