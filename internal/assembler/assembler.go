// Package assembler is the Tile Assembler: it ties the metastore, the
// store adapter, the binning engine and the vector tile codec together
// into the handful of operations the HTTP surface actually exposes —
// a density tile, an ad-hoc search tile, and a regression surface.
package assembler

import (
	"context"

	"github.com/gbif/mvt-tile-server/internal/apierr"
	"github.com/gbif/mvt-tile-server/internal/binning"
	"github.com/gbif/mvt-tile-server/internal/core/observability"
	"github.com/gbif/mvt-tile-server/internal/metastore"
	"github.com/gbif/mvt-tile-server/internal/projection"
	"github.com/gbif/mvt-tile-server/internal/regression"
	"github.com/gbif/mvt-tile-server/internal/search"
	"github.com/gbif/mvt-tile-server/internal/store"
	"github.com/gbif/mvt-tile-server/internal/vectortile"
)

// BinKind selects which lattice the Binning Engine overlays on a set
// of point features.
type BinKind string

const (
	BinNone   BinKind = ""
	BinHex    BinKind = "hex"
	BinSquare BinKind = "square"
)

// BinSpec carries the binning request from the query string down into
// the engine it selects.
type BinSpec struct {
	Kind         BinKind
	CellsPerTile int // hex
	CellSize     int // square, in pixels
}

func (b *BinSpec) engine(tileSize int) binning.Engine {
	if b == nil {
		return nil
	}
	switch b.Kind {
	case BinHex:
		return binning.HexBin{TileSize: tileSize, CellsPerTile: b.CellsPerTile}
	case BinSquare:
		return binning.SquareBin{TileSize: tileSize, CellSize: b.CellSize}
	default:
		return nil
	}
}

// Assembler is the entry point the HTTP router calls into for every
// tile it serves. It holds no per-request state.
type Assembler struct {
	Meta        metastore.Metastore
	Store       *store.Adapter
	Search      *search.Adapter
	SaltModulus int
	TileSize    int
	BufferSize  int
}

// Assemble implements the density tile path: resolve table, fetch the
// precomputed per-tile features, filter them into a projected total
// (+ optional per-year breakdown), bin if requested, and re-encode.
func (a *Assembler) Assemble(ctx context.Context, logical string, addr projection.TileAddress, mapKey string, filters Filters, bin *BinSpec) ([]byte, error) {
	table, err := a.Meta.TableFor(logical)
	if err != nil {
		return nil, apierr.Configuration("assembler.Assemble", "resolving table", err)
	}

	raw, err := a.Store.GetTile(ctx, tableMapKey(table, mapKey), a.SaltModulus, addr)
	if apierr.IsNoData(err) {
		return a.encodeEmpty(addr)
	}
	if err != nil {
		return nil, err
	}

	projected := applyFilters(raw, filters)
	if len(projected) == 0 {
		observability.IncTileAssembled(logical, "empty")
		return a.encodeEmpty(addr)
	}

	out, err := a.bin(projected, addr, bin)
	if err != nil {
		return nil, err
	}

	observability.IncTileAssembled(logical, "ok")
	return a.encode(out, addr)
}

// AssembleAdhoc implements the ad-hoc search path: instead of the
// partitioned store, it queries the Search Backend Adapter over the
// tile's buffered WGS84 envelope and turns its buckets into either
// polygon cells or, when binning is requested, centroid points handed
// to the Binning Engine exactly like the density path.
func (a *Assembler) AssembleAdhoc(ctx context.Context, addr projection.TileAddress, filters Filters, bin *BinSpec) ([]byte, error) {
	box, err := projection.BufferedTileBoundary(addr, projection.WGS84, bufferFraction(a.BufferSize, a.TileSize))
	if err != nil {
		return nil, apierr.Configuration("assembler.AssembleAdhoc", "computing buffered boundary", err)
	}

	buckets, err := a.Search.Query(ctx, box, filters.Query)
	if apierr.IsNoData(err) {
		return a.encodeEmpty(addr)
	}
	if err != nil {
		return nil, err
	}

	features := make([]vectortile.Feature, 0, len(buckets))
	for _, b := range buckets {
		features = append(features, bucketToFeature(b, addr, a.TileSize, a.BufferSize))
	}

	out, err := a.bin(features, addr, bin)
	if err != nil {
		return nil, err
	}

	observability.IncTileAssembled("adhoc", "ok")
	return a.encode(out, addr)
}

// AssembleRegression implements the regression surface: both the
// species and reference tiles are assembled through the same density
// path in hex mode, joined by cell id, and regressed year over year.
func (a *Assembler) AssembleRegression(ctx context.Context, logical string, addr projection.TileAddress, speciesKey, referenceKey string, bin BinSpec, minYears int) ([]byte, error) {
	cells, err := a.regressionCells(ctx, logical, addr, speciesKey, referenceKey, bin, minYears)
	if err != nil {
		return nil, err
	}
	return a.encode(cells, addr)
}

// AssembleRegressionJSON is the non-tile variant of the regression
// surface: the same cells, without ever going through the MVT codec.
func (a *Assembler) AssembleRegressionJSON(ctx context.Context, logical string, addr projection.TileAddress, speciesKey, referenceKey string, bin BinSpec, minYears int) ([]vectortile.Feature, error) {
	return a.regressionCells(ctx, logical, addr, speciesKey, referenceKey, bin, minYears)
}

func (a *Assembler) regressionCells(ctx context.Context, logical string, addr projection.TileAddress, speciesKey, referenceKey string, bin BinSpec, minYears int) ([]vectortile.Feature, error) {
	verbose := Filters{Verbose: true}

	species, err := a.assembleBinned(ctx, logical, addr, speciesKey, verbose, bin)
	if err != nil && !apierr.IsNoData(err) {
		return nil, err
	}
	reference, err := a.assembleBinned(ctx, logical, addr, referenceKey, verbose, bin)
	if err != nil && !apierr.IsNoData(err) {
		return nil, err
	}

	if minYears <= 0 {
		minYears = 2
	}
	cells, err := regression.BuildSurface(species, reference, minYears)
	if err != nil {
		return nil, apierr.Backend("assembler.regressionCells", "building regression surface", err)
	}
	observability.AddRegressionCells(len(cells))
	return cells, nil
}

// assembleBinned runs the density pipeline as far as binned features,
// without encoding, for the regression path's internal use.
func (a *Assembler) assembleBinned(ctx context.Context, logical string, addr projection.TileAddress, mapKey string, filters Filters, bin BinSpec) ([]vectortile.Feature, error) {
	table, err := a.Meta.TableFor(logical)
	if err != nil {
		return nil, apierr.Configuration("assembler.assembleBinned", "resolving table", err)
	}
	raw, err := a.Store.GetTile(ctx, tableMapKey(table, mapKey), a.SaltModulus, addr)
	if err != nil {
		return nil, err
	}
	projected := applyFilters(raw, filters)
	if len(projected) == 0 {
		return nil, apierr.NoData("assembler.assembleBinned", "no features after filtering")
	}
	return a.bin(projected, addr, &bin)
}

func (a *Assembler) bin(features []vectortile.Feature, addr projection.TileAddress, spec *BinSpec) ([]vectortile.Feature, error) {
	engine := spec.engine(a.TileSize)
	if engine == nil {
		return features, nil
	}
	binned, err := engine.Bin(features, addr)
	if err != nil {
		return nil, apierr.Backend("assembler.bin", "binning features", err)
	}
	return binned, nil
}

func (a *Assembler) encode(features []vectortile.Feature, addr projection.TileAddress) ([]byte, error) {
	enc := vectortile.NewEncoder(a.TileSize, a.BufferSize)
	for _, f := range features {
		enc.Add(f)
	}
	data, err := enc.Encode(addr)
	if err != nil {
		return nil, apierr.Codec("assembler.encode", "encoding tile", err)
	}
	return data, nil
}

func (a *Assembler) encodeEmpty(addr projection.TileAddress) ([]byte, error) {
	return vectortile.NewEncoder(a.TileSize, a.BufferSize).Encode(addr)
}

func applyFilters(raw []vectortile.Feature, filters Filters) []vectortile.Feature {
	out := make([]vectortile.Feature, 0, len(raw))
	for _, f := range raw {
		attrs, ok := filters.projectAttrs(f.Attrs)
		if !ok {
			continue
		}
		out = append(out, vectortile.Feature{Layer: f.Layer, Geometry: f.Geometry, Attrs: attrs})
	}
	return out
}

func tableMapKey(table, mapKey string) string {
	if mapKey == "" {
		return table
	}
	return table + ":" + mapKey
}

func bufferFraction(bufferSize, tileSize int) float64 {
	if tileSize <= 0 {
		return 0
	}
	return float64(bufferSize) / float64(tileSize)
}
