package regression

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/gbif/mvt-tile-server/internal/vectortile"
)

func cellFeature(layer string, x, y float64, attrs map[string]interface{}) vectortile.Feature {
	ring := orb.Ring{{x, y}, {x + 10, y}, {x + 10, y + 10}, {x, y + 10}, {x, y}}
	return vectortile.Feature{Layer: layer, Geometry: orb.Polygon{ring}, Attrs: attrs}
}

func TestBuildSurface_SkipsCellsBelowMinYears(t *testing.T) {
	species := []vectortile.Feature{
		cellFeature("species", 0, 0, map[string]interface{}{
			"total": int64(5), "2020": int64(2), "2021": int64(3),
		}),
	}
	reference := []vectortile.Feature{
		cellFeature("higherTaxon", 0, 0, map[string]interface{}{
			"total": int64(50), "2020": int64(20), "2021": int64(30),
		}),
	}
	out, err := BuildSurface(species, reference, 3)
	if err != nil {
		t.Fatalf("BuildSurface: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected cell with only 2 years to be skipped, got %d", len(out))
	}
}

func TestBuildSurface_NormalizesAgainstReference(t *testing.T) {
	species := []vectortile.Feature{
		cellFeature("species", 0, 0, map[string]interface{}{
			"total": int64(30), "2018": int64(5), "2019": int64(10), "2020": int64(15),
		}),
	}
	reference := []vectortile.Feature{
		cellFeature("higherTaxon", 0, 0, map[string]interface{}{
			"total": int64(300), "2018": int64(50), "2019": int64(100), "2020": int64(150),
		}),
	}
	out, err := BuildSurface(species, reference, 3)
	if err != nil {
		t.Fatalf("BuildSurface: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 regressed cell, got %d", len(out))
	}
	if out[0].Layer != "regression" {
		t.Fatalf("layer = %q, want regression", out[0].Layer)
	}
	if _, ok := out[0].Attrs["slope"]; !ok {
		t.Fatalf("expected slope attribute in output: %+v", out[0].Attrs)
	}
}

func TestBuildSurface_UnmatchedCellIsExcluded(t *testing.T) {
	species := []vectortile.Feature{
		cellFeature("species", 100, 100, map[string]interface{}{
			"total": int64(9), "2018": int64(1), "2019": int64(4), "2020": int64(4),
		}),
	}
	out, err := BuildSurface(species, nil, 3)
	if err != nil {
		t.Fatalf("BuildSurface: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected cell with no counterpart in the reference tile to be excluded, got %d", len(out))
	}
}

func TestBuildSurface_YearsWithoutPositiveReferenceAreDropped(t *testing.T) {
	species := []vectortile.Feature{
		cellFeature("species", 0, 0, map[string]interface{}{
			"total": int64(12), "2018": int64(1), "2019": int64(4), "2020": int64(4), "2021": int64(3),
		}),
	}
	reference := []vectortile.Feature{
		cellFeature("higherTaxon", 0, 0, map[string]interface{}{
			// 2018 is absent and 2020 is zero: neither should contribute
			// to the paired series, leaving only 2019 and 2021 — exactly
			// at the minYears=2 threshold.
			"total": int64(80), "2019": int64(40), "2020": int64(0), "2021": int64(30),
		}),
	}
	out, err := BuildSurface(species, reference, 2)
	if err != nil {
		t.Fatalf("BuildSurface: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 regressed cell at the minYears threshold, got %d", len(out))
	}
}

func TestBuildSurface_MinYearsOfTwoAllowsExactlyTwoPairedYears(t *testing.T) {
	species := []vectortile.Feature{
		cellFeature("species", 0, 0, map[string]interface{}{
			"total": int64(5), "2020": int64(2), "2021": int64(3),
		}),
	}
	reference := []vectortile.Feature{
		cellFeature("higherTaxon", 0, 0, map[string]interface{}{
			"total": int64(50), "2020": int64(20), "2021": int64(30),
		}),
	}
	out, err := BuildSurface(species, reference, 2)
	if err != nil {
		t.Fatalf("BuildSurface: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected the spec's default minYears=2 to accept a 2-year cell, got %d", len(out))
	}
	slope, ok := out[0].Attrs["slope"].(float64)
	if !ok || math.IsNaN(slope) {
		t.Fatalf("expected a finite slope from 2 paired points, got %v", out[0].Attrs["slope"])
	}
	if sig, ok := out[0].Attrs["significance"].(float64); !ok || !math.IsNaN(sig) {
		t.Fatalf("expected NaN significance with zero residual degrees of freedom, got %v", out[0].Attrs["significance"])
	}
}
