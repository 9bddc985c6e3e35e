// Package keys builds the salted row keys used to spread a single
// logical map (a species or higher-taxon key) across saltModulus
// partitions of the backing store, and to recompose a tile address
// into every one of those partitions for read fan-out.
package keys

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/gbif/mvt-tile-server/internal/projection"
)

// Salt returns the deterministic partition, in [0, saltModulus), that
// mapKey was written under. saltModulus <= 1 means the store isn't
// partitioned and every row lives under salt 0.
func Salt(mapKey string, saltModulus int) int {
	if saltModulus <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(mapKey) % uint64(saltModulus))
}

// RowKey builds the key for one salt bucket of a map's tile row.
// mapKey is expected to already carry whatever table/logical-map
// prefix the caller needs; this package only handles salting and tile
// addressing.
func RowKey(mapKey string, salt int, addr projection.TileAddress) string {
	return fmt.Sprintf("%s:%d:%d/%d/%d", sanitizeMapKey(mapKey), salt, addr.Z, addr.X, addr.Y)
}

// AllRowKeys returns the row key for every salt bucket of mapKey at
// addr, in bucket order, so a fan-out reader can issue one lookup per
// element and know which index came from which bucket.
func AllRowKeys(mapKey string, saltModulus int, addr projection.TileAddress) []string {
	if saltModulus <= 1 {
		return []string{RowKey(mapKey, 0, addr)}
	}
	out := make([]string, saltModulus)
	for s := 0; s < saltModulus; s++ {
		out[s] = RowKey(mapKey, s, addr)
	}
	return out
}

var collapseWS = regexp.MustCompile(`\s+`)

// sanitizeMapKey normalises a map key string (a table prefix joined
// to a taxon key taken from the query string) so it is safe to embed
// in a store key.
func sanitizeMapKey(s string) string {
	s = collapseWS.ReplaceAllString(strings.TrimSpace(s), "_")
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := r
		switch {
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-':
			// keep as-is
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || unicode.IsDigit(r)
}
