package binning

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/gbif/mvt-tile-server/internal/projection"
	"github.com/gbif/mvt-tile-server/internal/vectortile"
)

// HexBin aggregates features into a flat-top hexagonal lattice sized
// so that CellsPerTile hexagons span the tile's core width. The
// lattice origin is pinned to global pixel (0,0) rather than the
// tile's own origin, so neighbouring tiles' lattices line up exactly
// along their shared edge.
type HexBin struct {
	TileSize     int
	CellsPerTile int
}

func (h HexBin) radius() float64 {
	n := h.CellsPerTile
	if n <= 0 {
		n = 35
	}
	return float64(h.TileSize) / float64(n) / 1.5
}

func (h HexBin) Bin(features []vectortile.Feature, addr projection.TileAddress) ([]vectortile.Feature, error) {
	r := h.radius()
	cells := map[string]*cellAccum{}

	originX := float64(addr.X) * float64(h.TileSize)
	originY := float64(addr.Y) * float64(h.TileSize)

	for _, f := range features {
		lx, ly, ok := pointOf(f.Geometry)
		if !ok {
			continue
		}
		gx, gy := originX+lx, originY+ly

		q, axR := axialRound(pixelToAxial(gx, gy, r))
		centerGX, centerGY := axialToPixel(q, axR, r)

		centerLX, centerLY := centerGX-originX, centerGY-originY
		verts := hexVertices(centerLX, centerLY, r)
		id := cellID(originX+verts[0][0], originY+verts[0][1])

		acc, ok := cells[id]
		if !ok {
			acc = newAccum()
			acc.id = id
			acc.geometry = orb.Polygon{append(verts, verts[0])}
			cells[id] = acc
		}
		acc.add(f)
	}

	return sortedFeatures(cells, "occurrence"), nil
}

// pixelToAxial converts a flat-top pixel coordinate, anchored at pixel
// (0,0), into fractional axial coordinates for a hex grid with
// circumradius size.
func pixelToAxial(px, py, size float64) (q, r float64) {
	q = (2.0 / 3.0 * px) / size
	r = (-1.0/3.0*px + math.Sqrt(3)/3*py) / size
	return q, r
}

// axialToPixel is the inverse of pixelToAxial: the pixel center of the
// hex at axial coordinate (q, r).
func axialToPixel(q, r, size float64) (px, py float64) {
	px = size * (3.0 / 2.0 * q)
	py = size * (math.Sqrt(3)/2*q + math.Sqrt(3)*r)
	return px, py
}

// axialRound snaps fractional axial coordinates to the nearest hex via
// cube-coordinate rounding: round x, y, z independently, then fix up
// whichever axis has the largest rounding error so x+y+z stays zero.
// Rounding q and r independently (an offset-column heuristic) can land
// in the wrong hex near a cell boundary; this is the standard
// correction. Ties — a point exactly on an edge between cells — break
// toward the lower-(q, r) cell by flooring instead of rounding to
// nearest.
func axialRound(q, r float64) (float64, float64) {
	x, z := q, r
	y := -x - z

	rx, ry, rz := math.Round(x), math.Round(y), math.Round(z)
	dx, dy, dz := math.Abs(rx-x), math.Abs(ry-y), math.Abs(rz-z)

	const eps = 1e-9
	switch {
	case dx > dy+eps && dx > dz+eps:
		rx = -ry - rz
	case dy > dx+eps && dy > dz+eps:
		ry = -rx - rz
	case dz > dx+eps && dz > dy+eps:
		rz = -rx - ry
	default:
		rx = math.Floor(x)
		rz = math.Floor(z)
	}
	return rx, rz
}

// hexVertices returns a flat-top hexagon's 6 corners, starting at the
// rightmost vertex and proceeding counter-clockwise, so the first
// vertex is a deterministic, rotation-independent anchor for cellID.
func hexVertices(cx, cy, r float64) orb.Ring {
	verts := make(orb.Ring, 6)
	for i := 0; i < 6; i++ {
		angle := math.Pi / 3 * float64(i)
		verts[i] = orb.Point{cx + r*math.Cos(angle), cy + r*math.Sin(angle)}
	}
	return verts
}

func sortedFeatures(cells map[string]*cellAccum, layer string) []vectortile.Feature {
	ids := make([]string, 0, len(cells))
	for id := range cells {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]vectortile.Feature, 0, len(ids))
	for _, id := range ids {
		out = append(out, cells[id].toFeature(layer))
	}
	return out
}
