package regression

import (
	"sort"

	"github.com/gbif/mvt-tile-server/internal/binning"
	"github.com/gbif/mvt-tile-server/internal/vectortile"
)

// BuildSurface regresses each cell's species share of occurrences
// against year, using reference as the higher-taxon population that
// normalises out a cell's overall sampling effort trend. Only cells
// present in both tiles contribute, and within a cell only years where
// the reference has a positive count are paired — a species year with
// no reference count has no population to normalise against and is
// dropped rather than falling back to the species' own count. Cells
// whose paired series ends up shorter than minYears distinct years are
// skipped, per spec §4.8/§3.
func BuildSurface(species, reference []vectortile.Feature, minYears int) ([]vectortile.Feature, error) {
	refByID := make(map[string]map[int]int64, len(reference))
	for _, f := range reference {
		id, ok := binning.GeometryID(f.Geometry)
		if !ok {
			continue
		}
		refByID[id] = yearCounts(f)
	}

	out := make([]vectortile.Feature, 0, len(species))
	for _, f := range species {
		id, ok := binning.GeometryID(f.Geometry)
		if !ok {
			continue
		}
		refYears, ok := refByID[id]
		if !ok {
			continue // cell has no counterpart in the reference tile
		}
		speciesYears := yearCounts(f)

		reg := &Regression{}
		for year, count := range speciesYears {
			rc, ok := refYears[year]
			if !ok || rc <= 0 {
				continue
			}
			reg.Add(float64(year), float64(count)/float64(rc))
		}
		if reg.N() < int64(minYears) {
			continue
		}

		out = append(out, vectortile.Feature{
			Layer:    "regression",
			Geometry: f.Geometry,
			Attrs:    statsToAttrs(reg.Stats(), f.Attrs),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		idI, _ := binning.GeometryID(out[i].Geometry)
		idJ, _ := binning.GeometryID(out[j].Geometry)
		return idI < idJ
	})
	return out, nil
}

func yearCounts(f vectortile.Feature) map[int]int64 {
	out := map[int]int64{}
	for k, v := range f.Attrs {
		y := 0
		ok := len(k) > 0
		for _, r := range k {
			if r < '0' || r > '9' {
				ok = false
				break
			}
			y = y*10 + int(r-'0')
		}
		if !ok || y <= 0 {
			continue
		}
		switch n := v.(type) {
		case int64:
			out[y] = n
		case int:
			out[y] = int64(n)
		case float64:
			out[y] = int64(n)
		}
	}
	return out
}

func statsToAttrs(s Stats, base map[string]interface{}) map[string]interface{} {
	attrs := map[string]interface{}{
		"total":           base["total"],
		"slope":           s.Slope,
		"intercept":       s.Intercept,
		"significance":    s.Significance,
		"sse":             s.SSE,
		"slopeStdErr":     s.SlopeStdErr,
		"interceptStdErr": s.InterceptStdErr,
		"meanSquareError": s.MeanSquareError,
		"n":               s.N,
	}
	return attrs
}
