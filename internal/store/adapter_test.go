package store

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/gbif/mvt-tile-server/internal/projection"
	"github.com/gbif/mvt-tile-server/internal/store/keys"
	"github.com/gbif/mvt-tile-server/internal/store/redisstore"
	"github.com/gbif/mvt-tile-server/internal/vectortile"

	"github.com/paulmach/orb"
)

func newTestAdapter(t *testing.T) (*Adapter, *redisstore.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	a, err := NewAdapter(rc, 0, 4)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return a, rc
}

func encodeOneFeature(t *testing.T, addr projection.TileAddress, total int) []byte {
	t.Helper()
	enc := vectortile.NewEncoder(4096, 1024)
	enc.Add(vectortile.Feature{
		Layer:    "occurrence",
		Geometry: orb.Point{10, 10},
		Attrs:    map[string]interface{}{"total": total},
	})
	data, err := enc.Encode(addr)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestGetTileParts_MissingBucketsAreNil(t *testing.T) {
	a, rc := newTestAdapter(t)
	addr := projection.TileAddress{Z: 2, X: 1, Y: 1}
	mapKey := "9701"
	saltModulus := 4

	rowKeys := keys.AllRowKeys(mapKey, saltModulus, addr)
	ctx := context.Background()
	if err := rc.Set(ctx, rowKeys[1], encodeOneFeature(t, addr, 5), time.Minute); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	parts, err := a.GetTileParts(ctx, mapKey, saltModulus, addr)
	if err != nil {
		t.Fatalf("GetTileParts: %v", err)
	}
	if len(parts) != saltModulus {
		t.Fatalf("got %d parts, want %d", len(parts), saltModulus)
	}
	present := 0
	for _, p := range parts {
		if p != nil {
			present++
		}
	}
	if present != 1 {
		t.Fatalf("expected exactly 1 populated bucket, got %d", present)
	}
}

func TestGetTile_NoDataAcrossAllBuckets(t *testing.T) {
	a, _ := newTestAdapter(t)
	_, err := a.GetTile(context.Background(), "absent-key", 4, projection.TileAddress{Z: 0, X: 0, Y: 0})
	if err == nil {
		t.Fatal("expected NoData error")
	}
}

func TestGetTile_MergesAcrossBuckets(t *testing.T) {
	a, rc := newTestAdapter(t)
	addr := projection.TileAddress{Z: 1, X: 0, Y: 0}
	mapKey := "9701"
	saltModulus := 2

	rowKeys := keys.AllRowKeys(mapKey, saltModulus, addr)
	ctx := context.Background()
	if err := rc.Set(ctx, rowKeys[0], encodeOneFeature(t, addr, 3), time.Minute); err != nil {
		t.Fatalf("seed row 0: %v", err)
	}
	if err := rc.Set(ctx, rowKeys[1], encodeOneFeature(t, addr, 4), time.Minute); err != nil {
		t.Fatalf("seed row 1: %v", err)
	}

	feats, err := a.GetTile(ctx, mapKey, saltModulus, addr)
	if err != nil {
		t.Fatalf("GetTile: %v", err)
	}
	if len(feats) != 2 {
		t.Fatalf("expected 2 merged features, got %d", len(feats))
	}
}
