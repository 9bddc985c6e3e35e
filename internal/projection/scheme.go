// Package projection converts between geographic coordinates, global
// pixel space at a given zoom, and tile-local pixel space, for each of
// the tile schemes the service supports.
package projection

import (
	"fmt"
	"math"
)

// Scheme identifies a coordinate reference system a tile grid is laid
// out on. Each scheme defines its own global pixel extent at zoom 0.
type Scheme string

const (
	WebMercator    Scheme = "EPSG:3857"
	WGS84          Scheme = "EPSG:4326"
	ArcticLAEA     Scheme = "EPSG:3575"
	AntarcticLAEA  Scheme = "EPSG:3031"
)

func (s Scheme) Valid() bool {
	switch s {
	case WebMercator, WGS84, ArcticLAEA, AntarcticLAEA:
		return true
	}
	return false
}

// ParseScheme accepts the "srs" query parameter value used on the wire.
func ParseScheme(s string) (Scheme, error) {
	sc := Scheme(s)
	if !sc.Valid() {
		return "", fmt.Errorf("unsupported srs %q", s)
	}
	return sc, nil
}

const (
	webMercatorRadius = 6378137.0
	arcticLAEALat0    = 90.0
	antarcticLAEALat0 = -90.0
)

// ToGlobalPixelXY projects a lat/lon pair into the global pixel plane
// for the given zoom level and scheme. The plane spans [0, tileSize *
// 2^z) on both axes, with Y increasing downward (north at the top).
func ToGlobalPixelXY(lat, lon float64, z uint, scheme Scheme, tileSize int) (float64, float64, error) {
	size := float64(tileSize) * math.Exp2(float64(z))

	switch scheme {
	case WebMercator:
		lat = clamp(lat, -85.05112878, 85.05112878)
		x := (lon + 180.0) / 360.0
		sinLat := math.Sin(lat * math.Pi / 180.0)
		y := 0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)
		return x * size, y * size, nil

	case WGS84:
		x := (lon + 180.0) / 360.0
		y := (90.0 - lat) / 180.0
		return x * size, y * size, nil

	case ArcticLAEA:
		return laeaGlobalPixel(lat, lon, arcticLAEALat0, size)

	case AntarcticLAEA:
		return laeaGlobalPixel(lat, lon, antarcticLAEALat0, size)
	}
	return 0, 0, fmt.Errorf("ToGlobalPixelXY: unsupported scheme %q", scheme)
}

// laeaGlobalPixel implements a spherical Lambert Azimuthal Equal-Area
// projection centred on a pole, normalised into [0,size) x [0,size)
// the same way the equatorial schemes are. poleLat is +90 or -90.
func laeaGlobalPixel(lat, lon, poleLat, size float64) (float64, float64, error) {
	const r = 1.0 // normalised sphere radius; output is rescaled below
	latRad := lat * math.Pi / 180.0
	lonRad := lon * math.Pi / 180.0
	var colat float64
	if poleLat > 0 {
		colat = math.Pi/2 - latRad
	} else {
		colat = math.Pi/2 + latRad
	}
	rho := r * math.Sqrt(2*(1-math.Cos(colat)))
	var px, py float64
	if poleLat > 0 {
		px = rho * math.Sin(lonRad)
		py = -rho * math.Cos(lonRad)
	} else {
		px = rho * math.Sin(-lonRad)
		py = -rho * math.Cos(-lonRad)
	}
	// normalise from [-sqrt(2), sqrt(2)] to [0, size)
	const extent = math.Sqrt2 * 2
	nx := (px + math.Sqrt2) / extent
	ny := (py + math.Sqrt2) / extent
	return nx * size, ny * size, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
