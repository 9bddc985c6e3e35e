// Package router parses the tile service's HTTP surface into the
// typed request shapes the Tile Assembler expects, and translates its
// results (and errors) back into HTTP responses.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gbif/mvt-tile-server/internal/apierr"
	"github.com/gbif/mvt-tile-server/internal/assembler"
	"github.com/gbif/mvt-tile-server/internal/core/config"
	"github.com/gbif/mvt-tile-server/internal/core/observability"
	"github.com/gbif/mvt-tile-server/internal/projection"
	"github.com/gbif/mvt-tile-server/internal/vectortile"
)

// logicalMap is the base Metastore key every occurrence route resolves
// against; logicalFor appends the projection scheme as a suffix because a
// WebMercator and a WGS84 tile pyramid address the same (z, x, y)
// triple to entirely different ground squares and so cannot share a
// physical table.
const logicalMap = "occurrence"

// Handlers wires an Assembler to the routes spec §6 names.
type Handlers struct {
	Asm    *assembler.Assembler
	Logger *slog.Logger
	Cfg    config.Config
}

func New(asm *assembler.Assembler, cfg config.Config, logger *slog.Logger) *Handlers {
	return &Handlers{Asm: asm, Logger: logger, Cfg: cfg}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (h *Handlers) instrument(route string, fn func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if h.Cfg.StoreOpTimeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), h.Cfg.StoreOpTimeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		fn(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

// Density serves GET /occurrence/density/{z}/{x}/{y}.mvt.
func (h *Handlers) Density() http.HandlerFunc {
	return h.instrument("/occurrence/density", func(w http.ResponseWriter, r *http.Request) {
		addr, scheme, err := parseTileRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}
		taxonKey := r.URL.Query().Get("taxonKey")
		filters, err := parseFilters(r)
		if err != nil {
			writeError(w, err)
			return
		}
		bin, err := h.parseBinSpec(r)
		if err != nil {
			writeError(w, err)
			return
		}

		data, err := h.Asm.Assemble(r.Context(), logicalFor(logicalMap, scheme), addr, taxonKey, filters, bin)
		if err != nil {
			writeError(w, err)
			return
		}
		writeTile(w, data)
	})
}

// Adhoc serves GET /occurrence/adhoc/{z}/{x}/{y}.mvt. WGS84 is the
// only projection the search backend path accepts.
func (h *Handlers) Adhoc() http.HandlerFunc {
	return h.instrument("/occurrence/adhoc", func(w http.ResponseWriter, r *http.Request) {
		addr, scheme, err := parseTileRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if scheme != projection.WGS84 {
			writeError(w, apierr.Validation("router.Adhoc", "srs must be EPSG:4326 on the ad-hoc path", nil))
			return
		}
		filters, err := parseFilters(r)
		if err != nil {
			writeError(w, err)
			return
		}
		filters.Query = passthroughQuery(r)
		bin, err := h.parseBinSpec(r)
		if err != nil {
			writeError(w, err)
			return
		}

		data, err := h.Asm.AssembleAdhoc(r.Context(), addr, filters, bin)
		if err != nil {
			writeError(w, err)
			return
		}
		writeTile(w, data)
	})
}

// Regression serves GET /occurrence/regression/{z}/{x}/{y}.mvt.
func (h *Handlers) Regression() http.HandlerFunc {
	return h.instrument("/occurrence/regression", func(w http.ResponseWriter, r *http.Request) {
		addr, scheme, species, higher, bin, minYears, err := h.parseRegressionRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}
		data, err := h.Asm.AssembleRegression(r.Context(), logicalFor(logicalMap, scheme), addr, species, higher, bin, minYears)
		if err != nil {
			writeError(w, err)
			return
		}
		writeTile(w, data)
	})
}

// RegressionJSON serves GET /occurrence/regression — the same surface
// as Regression, without the MVT codec round trip.
func (h *Handlers) RegressionJSON() http.HandlerFunc {
	return h.instrument("/occurrence/regression.json", func(w http.ResponseWriter, r *http.Request) {
		addr, scheme, species, higher, bin, minYears, err := h.parseRegressionRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}
		feats, err := h.Asm.AssembleRegressionJSON(r.Context(), logicalFor(logicalMap, scheme), addr, species, higher, bin, minYears)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, featuresToJSON(feats))
	})
}

func (h *Handlers) parseRegressionRequest(r *http.Request) (addr projection.TileAddress, scheme projection.Scheme, species, higher string, bin assembler.BinSpec, minYears int, err error) {
	addr, scheme, err = parseTileRequest(r)
	if err != nil {
		return
	}
	species = r.URL.Query().Get("taxonKey")
	higher = r.URL.Query().Get("higherTaxonKey")
	if higher == "" {
		err = apierr.Validation("router.parseRegressionRequest", "higherTaxonKey is required", nil)
		return
	}

	spec, berr := h.parseBinSpec(r)
	if berr != nil {
		err = berr
		return
	}
	if spec == nil {
		spec = &assembler.BinSpec{Kind: assembler.BinHex, CellsPerTile: h.Cfg.DefaultHexPerTile}
	}
	bin = *spec

	minYears = h.Cfg.DefaultMinYears
	if raw := r.URL.Query().Get("minYears"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 {
			err = apierr.Validation("router.parseRegressionRequest", "minYears must be a positive integer", convErr)
			return
		}
		minYears = n
	}
	return
}

func parseTileRequest(r *http.Request) (projection.TileAddress, projection.Scheme, error) {
	addr, err := parseTileAddress(r)
	if err != nil {
		return projection.TileAddress{}, "", err
	}
	scheme, err := parseScheme(r)
	if err != nil {
		return projection.TileAddress{}, "", err
	}
	return addr, scheme, nil
}

func parseTileAddress(r *http.Request) (projection.TileAddress, error) {
	z, err := strconv.Atoi(chi.URLParam(r, "z"))
	if err != nil {
		return projection.TileAddress{}, apierr.Validation("router.parseTileAddress", "invalid z", err)
	}
	x, err := strconv.Atoi(chi.URLParam(r, "x"))
	if err != nil {
		return projection.TileAddress{}, apierr.Validation("router.parseTileAddress", "invalid x", err)
	}
	yRaw := strings.TrimSuffix(chi.URLParam(r, "y"), ".mvt")
	y, err := strconv.Atoi(yRaw)
	if err != nil {
		return projection.TileAddress{}, apierr.Validation("router.parseTileAddress", "invalid y", err)
	}
	if z < 0 || x < 0 || y < 0 {
		return projection.TileAddress{}, apierr.Validation("router.parseTileAddress", "tile coordinates must be non-negative", nil)
	}
	addr := projection.TileAddress{Z: uint(z), X: uint32(x), Y: uint32(y)}
	if !addr.Valid() {
		return projection.TileAddress{}, apierr.Validation("router.parseTileAddress", "tile address out of range for its zoom", nil)
	}
	return addr, nil
}

func parseScheme(r *http.Request) (projection.Scheme, error) {
	raw := r.URL.Query().Get("srs")
	if raw == "" {
		return projection.WebMercator, nil
	}
	scheme, err := projection.ParseScheme(raw)
	if err != nil {
		return "", apierr.Validation("router.parseScheme", "unsupported srs", err)
	}
	return scheme, nil
}

func parseFilters(r *http.Request) (assembler.Filters, error) {
	q := r.URL.Query()
	years, err := assembler.ParseYearRange(q.Get("year"))
	if err != nil {
		return assembler.Filters{}, err
	}
	verbose, err := parseBool(q.Get("verbose"))
	if err != nil {
		return assembler.Filters{}, apierr.Validation("router.parseFilters", "verbose must be a boolean", err)
	}
	return assembler.Filters{
		Years:         years,
		BasisOfRecord: q["basisOfRecord"],
		Verbose:       verbose,
	}, nil
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func (h *Handlers) parseBinSpec(r *http.Request) (*assembler.BinSpec, error) {
	q := r.URL.Query()
	kind := strings.ToLower(strings.TrimSpace(q.Get("bin")))
	switch kind {
	case "":
		return nil, nil
	case "hex":
		n := h.Cfg.DefaultHexPerTile
		if raw := q.Get("hexPerTile"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				return nil, apierr.Validation("router.parseBinSpec", "hexPerTile must be a positive integer", err)
			}
			n = parsed
		}
		return &assembler.BinSpec{Kind: assembler.BinHex, CellsPerTile: n}, nil
	case "square":
		n := h.Cfg.DefaultSquareSize
		if raw := q.Get("squareSize"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				return nil, apierr.Validation("router.parseBinSpec", "squareSize must be a positive integer", err)
			}
			n = parsed
		}
		return &assembler.BinSpec{Kind: assembler.BinSquare, CellSize: n}, nil
	default:
		return nil, apierr.Validation("router.parseBinSpec", "bin must be hex, square, or omitted", nil)
	}
}

// knownParams are consumed by the assembler surface itself; everything
// else in the query string is an occurrence-search predicate passed
// straight through to the Search Backend Adapter, mirroring the
// teacher's CQL-filter passthrough on the WFS path.
var knownParams = map[string]bool{
	"srs": true, "bin": true, "hexPerTile": true, "squareSize": true,
	"year": true, "basisOfRecord": true, "verbose": true,
	"taxonKey": true, "higherTaxonKey": true, "minYears": true,
}

func passthroughQuery(r *http.Request) string {
	var b strings.Builder
	for k, vs := range r.URL.Query() {
		if knownParams[k] {
			continue
		}
		for _, v := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}

func logicalFor(name string, scheme projection.Scheme) string {
	return name + ":" + string(scheme)
}

func writeTile(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status := apierr.StatusCode(err)
	body := errorBody{Code: "internal_error", Message: "internal error"}
	if e, ok := apierr.As(err); ok {
		body.Code = string(e.Kind)
		body.Message = e.Message
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type regressionFeatureJSON struct {
	Geometry interface{}            `json:"geometry"`
	Attrs    map[string]interface{} `json:"attributes"`
}

func featuresToJSON(feats []vectortile.Feature) []regressionFeatureJSON {
	out := make([]regressionFeatureJSON, 0, len(feats))
	for _, f := range feats {
		out = append(out, regressionFeatureJSON{Geometry: f.Geometry, Attrs: f.Attrs})
	}
	return out
}
