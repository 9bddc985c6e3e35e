// Package vectortile encodes and decodes Mapbox Vector Tiles, wrapping
// paulmach/orb's mvt codec behind the feature shape the rest of the
// pipeline (binning, regression, assembly) works with.
package vectortile

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"github.com/gbif/mvt-tile-server/internal/projection"
)

// Feature is one point/polygon/line plus its attribute bag, in
// tile-local pixel coordinates once it has passed through an Encoder
// or come out of Decode.
type Feature struct {
	Layer    string
	Geometry orb.Geometry
	Attrs    map[string]interface{}
}

// Decode unpacks a tile's layers back into flat features. Geometry
// stays in the tile's own coordinate space (0..extent), matching how
// the assembler and binning engine consume it.
func Decode(data []byte) ([]Feature, error) {
	if len(data) == 0 {
		return nil, nil
	}
	layers, err := mvt.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("vectortile: decode: %w", err)
	}

	var out []Feature
	for _, layer := range layers {
		for _, gf := range layer.Features {
			out = append(out, Feature{
				Layer:    layer.Name,
				Geometry: gf.Geometry,
				Attrs:    map[string]interface{}(gf.Properties),
			})
		}
	}
	return out, nil
}

// DecodeLayer decodes only the named layer, skipping the rest.
func DecodeLayer(data []byte, layer string) ([]Feature, error) {
	all, err := Decode(data)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, f := range all {
		if f.Layer == layer {
			out = append(out, f)
		}
	}
	return out, nil
}

// Encoder accumulates features per layer and serialises them to MVT
// bytes for one tile address. Geometry added via Add must already be
// expressed in tile pixel space (including the buffer); the encoder
// does not reproject.
type Encoder struct {
	TileSize   int
	BufferSize int
	layers     map[string]*geojson.FeatureCollection
	order      []string
}

func NewEncoder(tileSize, bufferSize int) *Encoder {
	return &Encoder{
		TileSize:   tileSize,
		BufferSize: bufferSize,
		layers:     make(map[string]*geojson.FeatureCollection),
	}
}

// Add queues f for encoding. A feature whose bounding box lies entirely
// outside [-BufferSize, TileSize+BufferSize] on either axis is dropped.
func (e *Encoder) Add(f Feature) {
	if f.Geometry != nil {
		b := f.Geometry.Bound()
		lo, hi := -float64(e.BufferSize), float64(e.TileSize+e.BufferSize)
		if b.Max[0] < lo || b.Min[0] > hi || b.Max[1] < lo || b.Min[1] > hi {
			return
		}
	}
	fc, ok := e.layers[f.Layer]
	if !ok {
		fc = geojson.NewFeatureCollection()
		e.layers[f.Layer] = fc
		e.order = append(e.order, f.Layer)
	}
	gf := geojson.NewFeature(f.Geometry)
	gf.Properties = geojson.Properties(f.Attrs)
	fc.Append(gf)
}

// Empty reports whether any feature has been added to any layer.
func (e *Encoder) Empty() bool {
	for _, fc := range e.layers {
		if len(fc.Features) > 0 {
			return false
		}
	}
	return true
}

// Encode serialises every accumulated layer to MVT bytes. Unlike the
// typical orb/mvt usage, callers here have already projected feature
// geometry into tile-local pixel space via the projection package (our
// schemes go beyond the spherical Mercator grid orb.maptile assumes),
// so Marshal is handed pre-projected coordinates directly rather than
// going through Layers.ProjectToTile. addr is retained for callers
// that want to tag the resulting layers, but is not otherwise used
// once the geometry is already positioned.
func (e *Encoder) Encode(addr projection.TileAddress) ([]byte, error) {
	layers := mvt.NewLayers(e.layers)
	for _, l := range layers {
		l.Extent = uint32(e.TileSize)
		l.Version = 2
	}

	data, err := mvt.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("vectortile: encode %s: %w", addr, err)
	}
	return data, nil
}
