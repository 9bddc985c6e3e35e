package assembler

import (
	"strconv"
	"strings"

	"github.com/gbif/mvt-tile-server/internal/apierr"
)

// YearRange bounds the year-keyed attributes a feature contributes to
// its "total". Either end may be open, matching the four forms the
// "year" query parameter accepts on the wire: "YYYY", "YYYY,YYYY",
// ",YYYY" and "YYYY,".
type YearRange struct {
	From, To int
	HasFrom  bool
	HasTo    bool
}

// ParseYearRange parses the "year" query parameter. An empty string
// means no restriction and returns a nil range.
func ParseYearRange(s string) (*YearRange, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.SplitN(s, ",", 2)
	if len(parts) == 1 {
		y, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, apierr.Validation("assembler.ParseYearRange", "year must be an integer", err)
		}
		return &YearRange{From: y, HasFrom: true, To: y, HasTo: true}, nil
	}

	r := &YearRange{}
	if parts[0] != "" {
		y, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, apierr.Validation("assembler.ParseYearRange", "year lower bound must be an integer", err)
		}
		r.From, r.HasFrom = y, true
	}
	if parts[1] != "" {
		y, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, apierr.Validation("assembler.ParseYearRange", "year upper bound must be an integer", err)
		}
		r.To, r.HasTo = y, true
	}
	return r, nil
}

func (r *YearRange) contains(year int) bool {
	if r == nil {
		return true
	}
	if r.HasFrom && year < r.From {
		return false
	}
	if r.HasTo && year > r.To {
		return false
	}
	return true
}

// Filters is the request-level filter set shared by every tile
// operation: a year range, a basis-of-record whitelist, a verbose flag
// asking for the per-year breakdown to survive alongside "total", and
// an opaque passthrough query string forwarded to the Search Backend
// Adapter on the ad-hoc path.
type Filters struct {
	Years         *YearRange
	BasisOfRecord []string
	Verbose       bool
	Query         string
}

// projectAttrs sums the year-keyed attributes that pass Years into
// "total", optionally gated by BasisOfRecord. A stored feature's
// attribute map mixes year keys ("1990": 10) with basis-of-record keys
// ("BASIS_OF_RECORD_HUMAN_OBSERVATION": 4); only the former ever
// contributes to total — the BOR keys exist purely as a gate: when
// BasisOfRecord is non-empty, a feature contributes nothing unless at
// least one of its requested BOR keys has a positive count.
func (f Filters) projectAttrs(attrs map[string]interface{}) (map[string]interface{}, bool) {
	if len(f.BasisOfRecord) > 0 && !f.passesBOR(attrs) {
		return nil, false
	}

	var total int64
	years := map[string]int64{}
	for k, v := range attrs {
		y, n, ok := parseYearAttr(k, v)
		if !ok || !f.Years.contains(y) {
			continue
		}
		total += n
		years[k] = n
	}
	if total == 0 {
		return nil, false
	}

	out := map[string]interface{}{"total": total}
	if f.Verbose {
		for k, v := range years {
			out[k] = v
		}
	}
	return out, true
}

func (f Filters) passesBOR(attrs map[string]interface{}) bool {
	for _, bor := range f.BasisOfRecord {
		key := "BASIS_OF_RECORD_" + bor
		v, ok := attrs[key]
		if !ok {
			continue
		}
		if n, ok := toInt64(v); ok && n > 0 {
			return true
		}
	}
	return false
}

func parseYearAttr(key string, val interface{}) (year int, count int64, ok bool) {
	if key == "" {
		return 0, 0, false
	}
	y := 0
	for _, r := range key {
		if r < '0' || r > '9' {
			return 0, 0, false
		}
		y = y*10 + int(r-'0')
	}
	if y <= 0 {
		return 0, 0, false
	}
	n, ok := toInt64(val)
	if !ok {
		return 0, 0, false
	}
	return y, n, true
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

