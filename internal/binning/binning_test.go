package binning

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/gbif/mvt-tile-server/internal/projection"
	"github.com/gbif/mvt-tile-server/internal/vectortile"
)

func pts(coords ...[2]float64) []vectortile.Feature {
	out := make([]vectortile.Feature, 0, len(coords))
	for _, c := range coords {
		out = append(out, vectortile.Feature{
			Layer:    "occurrence",
			Geometry: orb.Point{c[0], c[1]},
			Attrs:    map[string]interface{}{"total": int64(1)},
		})
	}
	return out
}

func TestSquareBin_AggregatesNearbyPoints(t *testing.T) {
	sb := SquareBin{TileSize: 4096, CellSize: 64}
	addr := projection.TileAddress{Z: 4, X: 3, Y: 5}

	feats, err := sb.Bin(pts([2]float64{10, 10}, [2]float64{20, 20}, [2]float64{2000, 2000}), addr)
	if err != nil {
		t.Fatalf("Bin: %v", err)
	}
	if len(feats) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(feats))
	}
	var total int64
	for _, f := range feats {
		total += f.Attrs["total"].(int64)
	}
	if total != 3 {
		t.Fatalf("total across cells = %d, want 3", total)
	}
}

func TestSquareBin_CellIdentityStableAcrossTiles(t *testing.T) {
	sb := SquareBin{TileSize: 256, CellSize: 64}

	// Same global pixel, reached via two different tile addresses and
	// correspondingly different local coordinates, must bin to the
	// same cell id.
	addrA := projection.TileAddress{Z: 2, X: 1, Y: 0}
	addrB := projection.TileAddress{Z: 2, X: 0, Y: 0}

	// global pixel (300, 10): tile A origin is (256,0) -> local (44,10)
	featsA, err := sb.Bin(pts([2]float64{44, 10}), addrA)
	if err != nil {
		t.Fatalf("Bin A: %v", err)
	}
	// tile B origin is (0,0), so the same global point sits in B's
	// right-hand buffer at local (300,10).
	featsB, err := sb.Bin(pts([2]float64{300, 10}), addrB)
	if err != nil {
		t.Fatalf("Bin B: %v", err)
	}
	if len(featsA) != 1 || len(featsB) != 1 {
		t.Fatalf("expected exactly one cell each, got %d and %d", len(featsA), len(featsB))
	}
	// The identity is the first vertex in global pixels: tile origin
	// plus the tile-local first vertex.
	va := featsA[0].Geometry.(orb.Polygon)[0][0]
	vb := featsB[0].Geometry.(orb.Polygon)[0][0]
	if cellID(256+va[0], va[1]) != cellID(vb[0], vb[1]) {
		t.Fatalf("cell identity differs across tiles: A %v (origin 256,0) vs B %v (origin 0,0)", va, vb)
	}
}

func TestHexBin_AggregatesAndOrdersDeterministically(t *testing.T) {
	hb := HexBin{TileSize: 4096, CellsPerTile: 16}
	addr := projection.TileAddress{Z: 3, X: 1, Y: 1}

	input := pts([2]float64{100, 100}, [2]float64{3000, 3000})
	first, err := hb.Bin(input, addr)
	if err != nil {
		t.Fatalf("Bin: %v", err)
	}
	second, err := hb.Bin(input, addr)
	if err != nil {
		t.Fatalf("Bin (again): %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("non-deterministic cell count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Attrs["total"] != second[i].Attrs["total"] {
			t.Fatalf("non-deterministic ordering at index %d", i)
		}
	}
}

func TestAxialRound_RecoversExactCellAwayFromAndNearEdges(t *testing.T) {
	const size = 10.0
	targets := [][2]float64{{0, 0}, {3, -2}, {-4, 5}, {2, 2}}
	offsets := [][2]float64{{0, 0}, {size * 0.3, 0}, {-size * 0.3, 0}, {0, size * 0.3}, {size * 0.2, size * 0.2}}

	for _, target := range targets {
		cx, cy := axialToPixel(target[0], target[1], size)
		for _, off := range offsets {
			q, r := axialRound(pixelToAxial(cx+off[0], cy+off[1], size))
			if q != target[0] || r != target[1] {
				t.Fatalf("axialRound near %v + offset %v = (%v,%v), want %v", target, off, q, r, target)
			}
		}
	}
}

func TestHexBin_SumsYearAttributes(t *testing.T) {
	hb := HexBin{TileSize: 4096, CellsPerTile: 8}
	addr := projection.TileAddress{Z: 1, X: 0, Y: 0}

	feats := []vectortile.Feature{
		{Layer: "occurrence", Geometry: orb.Point{10, 10}, Attrs: map[string]interface{}{"total": int64(2), "2020": int64(2)}},
		{Layer: "occurrence", Geometry: orb.Point{12, 12}, Attrs: map[string]interface{}{"total": int64(3), "2020": int64(3)}},
	}
	out, err := hb.Bin(feats, addr)
	if err != nil {
		t.Fatalf("Bin: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected points to land in the same cell, got %d cells", len(out))
	}
	if out[0].Attrs["2020"] != int64(5) {
		t.Fatalf("2020 attribute = %v, want 5", out[0].Attrs["2020"])
	}
}
