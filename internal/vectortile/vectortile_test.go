package vectortile

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/gbif/mvt-tile-server/internal/projection"
)

func TestEncoder_EmptyBeforeAdd(t *testing.T) {
	e := NewEncoder(4096, 1024)
	if !e.Empty() {
		t.Fatal("fresh encoder should be empty")
	}
	e.Add(Feature{Layer: "occurrence", Geometry: orb.Point{10, 20}, Attrs: map[string]interface{}{"total": 3}})
	if e.Empty() {
		t.Fatal("encoder should no longer be empty after Add")
	}
}

func TestEncoder_EncodeRoundTrips(t *testing.T) {
	e := NewEncoder(4096, 1024)
	e.Add(Feature{
		Layer:    "occurrence",
		Geometry: orb.Point{100, 200},
		Attrs:    map[string]interface{}{"total": int64(7)},
	})

	data, err := e.Encode(projection.TileAddress{Z: 2, X: 1, Y: 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Encode produced no bytes")
	}

	features, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(features) != 1 {
		t.Fatalf("expected 1 decoded feature, got %d", len(features))
	}
	if features[0].Layer != "occurrence" {
		t.Fatalf("expected layer 'occurrence', got %q", features[0].Layer)
	}
}

func TestDecode_EmptyInput(t *testing.T) {
	features, err := Decode(nil)
	if err != nil {
		t.Fatalf("Decode(nil): %v", err)
	}
	if features != nil {
		t.Fatalf("expected nil features for empty input, got %v", features)
	}
}
