package keys

import (
	"testing"

	"github.com/gbif/mvt-tile-server/internal/projection"
)

func TestSalt_Deterministic(t *testing.T) {
	a := Salt("Puma concolor", 16)
	b := Salt("Puma concolor", 16)
	if a != b {
		t.Fatalf("Salt not deterministic: %d != %d", a, b)
	}
	if a < 0 || a >= 16 {
		t.Fatalf("Salt out of range: %d", a)
	}
}

func TestSalt_UnpartitionedAlwaysZero(t *testing.T) {
	if s := Salt("anything", 1); s != 0 {
		t.Fatalf("Salt with modulus 1 = %d, want 0", s)
	}
	if s := Salt("anything", 0); s != 0 {
		t.Fatalf("Salt with modulus 0 = %d, want 0", s)
	}
}

func TestAllRowKeys_CountMatchesModulus(t *testing.T) {
	addr := projection.TileAddress{Z: 3, X: 1, Y: 2}
	rks := AllRowKeys("9701", 8, addr)
	if len(rks) != 8 {
		t.Fatalf("got %d row keys, want 8", len(rks))
	}
	seen := map[string]struct{}{}
	for _, k := range rks {
		seen[k] = struct{}{}
	}
	if len(seen) != 8 {
		t.Fatalf("row keys are not unique across salts: %v", rks)
	}
}

func TestRowKey_SanitizesMapKey(t *testing.T) {
	addr := projection.TileAddress{Z: 0, X: 0, Y: 0}
	k := RowKey("some weird key!!", 0, addr)
	if k == "" {
		t.Fatal("RowKey returned empty string")
	}
}
