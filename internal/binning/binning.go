// Package binning aggregates point features into hexagonal or square
// cells. Cell identity is the pixel coordinate of the cell's first
// vertex rather than a row/column index, so the same physical cell
// produces the same id whether it's computed from this tile's core
// area or from the overlap visible through a neighbouring tile's
// buffer — a prerequisite for cells near a tile edge not being double
// counted by a client that stitches tiles together.
package binning

import (
	"math"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/gbif/mvt-tile-server/internal/projection"
	"github.com/gbif/mvt-tile-server/internal/vectortile"
)

// Engine bins a flat set of point/count features into cells and
// returns one feature per populated cell, carrying a "total" and
// (when present) year-keyed attributes summed across the cell.
type Engine interface {
	Bin(features []vectortile.Feature, addr projection.TileAddress) ([]vectortile.Feature, error)
}

// cellAccum tracks one cell's running totals while scanning features.
// geometry is fixed once the cell is first touched; ids never change
// after that, which is what lets two overlapping tile renders agree
// on the same cell boundary.
type cellAccum struct {
	id       string
	geometry orb.Geometry
	total    int64
	years    map[string]int64
}

func newAccum() *cellAccum {
	return &cellAccum{years: map[string]int64{}}
}

func (a *cellAccum) add(f vectortile.Feature) {
	a.total += countOf(f)
	for k, v := range f.Attrs {
		n, ok := yearCount(k, v)
		if !ok {
			continue
		}
		a.years[k] += n
	}
}

func (a *cellAccum) toFeature(layer string) vectortile.Feature {
	attrs := map[string]interface{}{"total": a.total}
	for k, v := range a.years {
		attrs[k] = v
	}
	return vectortile.Feature{Layer: layer, Geometry: a.geometry, Attrs: attrs}
}

func countOf(f vectortile.Feature) int64 {
	if v, ok := f.Attrs["total"]; ok {
		if n, ok := toInt64(v); ok {
			return n
		}
	}
	return 1
}

// yearCount mirrors the original service's year-attribute filter: a
// key that parses as a small positive integer is treated as a year
// and its value as an occurrence count for that year.
func yearCount(key string, val interface{}) (int64, bool) {
	y := 0
	for _, r := range key {
		if r < '0' || r > '9' {
			return 0, false
		}
		y = y*10 + int(r-'0')
	}
	if y <= 0 || len(key) == 0 {
		return 0, false
	}
	n, ok := toInt64(val)
	return n, ok
}

func toInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case uint32:
		return int64(t), true
	default:
		return 0, false
	}
}

func pointOf(g orb.Geometry) (float64, float64, bool) {
	switch p := g.(type) {
	case orb.Point:
		return p[0], p[1], true
	default:
		b := g.Bound()
		return (b.Min[0] + b.Max[0]) / 2, (b.Min[1] + b.Max[1]) / 2, true
	}
}

// cellID formats a stable identity from a cell's first vertex, using
// fixed precision so float rounding never splits one cell into two
// different ids across adjacent tile renders.
func cellID(x, y float64) string {
	return formatCoord(x) + ":" + formatCoord(y)
}

func formatCoord(v float64) string {
	r := math.Round(v*100) / 100
	return strconv.FormatFloat(r, 'f', 2, 64)
}

// GeometryID derives a first-vertex identity from the tile-local
// geometry of a feature that has already been through binning, so two
// ids match only for features binned at the same tile address. The
// regression engine uses it to correlate a species cell with the
// matching cell of the higher-taxon reference layer of the same tile.
func GeometryID(g orb.Geometry) (string, bool) {
	switch p := g.(type) {
	case orb.Polygon:
		if len(p) == 0 || len(p[0]) == 0 {
			return "", false
		}
		v := p[0][0]
		return cellID(v[0], v[1]), true
	case orb.Point:
		return cellID(p[0], p[1]), true
	default:
		return "", false
	}
}
