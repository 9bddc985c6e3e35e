package projection

import "fmt"

// TileAddress identifies a slippy-map tile by zoom and column/row.
type TileAddress struct {
	Z uint
	X uint32
	Y uint32
}

func (a TileAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Z, a.X, a.Y)
}

// Valid reports whether the address lies within the grid at zoom Z.
func (a TileAddress) Valid() bool {
	if a.Z > 30 {
		return false
	}
	n := uint32(1) << a.Z
	return a.X < n && a.Y < n
}

// Parent returns the tile one zoom level up that contains this tile.
// It is invalid to call this on a z=0 tile.
func (a TileAddress) Parent() (TileAddress, error) {
	if a.Z == 0 {
		return TileAddress{}, fmt.Errorf("tile %s has no parent", a)
	}
	return TileAddress{Z: a.Z - 1, X: a.X / 2, Y: a.Y / 2}, nil
}

// Children returns the four tiles one zoom level down.
func (a TileAddress) Children() [4]TileAddress {
	z := a.Z + 1
	x, y := a.X*2, a.Y*2
	return [4]TileAddress{
		{Z: z, X: x, Y: y},
		{Z: z, X: x + 1, Y: y},
		{Z: z, X: x, Y: y + 1},
		{Z: z, X: x + 1, Y: y + 1},
	}
}

// LatLngBox is a geographic bounding box in degrees.
type LatLngBox struct {
	MinLng, MinLat float64
	MaxLng, MaxLat float64
}

// ToTileLocalXY converts a point already in global pixel space at zoom
// z into pixel coordinates local to tile (x,y): the tile's top-left
// corner is (0,0) and its core spans [0, tileSize). A point in the
// buffer around the core gets coordinates below 0 or at/above tileSize,
// down to -bufferSize and up to tileSize+bufferSize.
func ToTileLocalXY(gx, gy float64, x, y uint32, tileSize, bufferSize int) (float64, float64) {
	originX := float64(x) * float64(tileSize)
	originY := float64(y) * float64(tileSize)
	return gx - originX, gy - originY
}

// BufferedTileBoundary returns the geographic envelope covered by the
// tile plus its buffer, in the given scheme. At z=0 the whole world is
// one tile, so the envelope is clamped to the full longitude range.
// At higher zooms a longitude pushed past +/-180 by the buffer is
// wrapped back into [-180, 180], so an envelope that crosses the
// dateline has MinLng > MaxLng. Latitude is clipped to [-90, 90].
func BufferedTileBoundary(addr TileAddress, scheme Scheme, bufferFraction float64) (LatLngBox, error) {
	if scheme != WGS84 {
		return LatLngBox{}, fmt.Errorf("BufferedTileBoundary: only implemented for %s", WGS84)
	}
	tilesPerZoom := 1 << addr.Z
	lngPerTile := 360.0 / float64(tilesPerZoom)
	latPerTile := 180.0 / float64(tilesPerZoom)
	lngBuffer := bufferFraction * lngPerTile
	latBuffer := bufferFraction * latPerTile

	minLng := lngPerTile*float64(addr.X) - 180 - lngBuffer
	maxLng := minLng + lngPerTile + lngBuffer*2

	maxLat := 90 - latPerTile*float64(addr.Y) + latBuffer
	minLat := maxLat - latPerTile - latBuffer*2

	if maxLat > 90 {
		maxLat = 90
	}
	if minLat < -90 {
		minLat = -90
	}

	// z=0 covers the entire globe already; there is no seam to wrap.
	if addr.Z == 0 {
		if minLng < -180 {
			minLng = -180
		}
		if maxLng > 180 {
			maxLng = 180
		}
	} else {
		if minLng < -180 {
			minLng += 360
		}
		if maxLng > 180 {
			maxLng -= 360
		}
	}

	return LatLngBox{MinLng: minLng, MinLat: minLat, MaxLng: maxLng, MaxLat: maxLat}, nil
}
