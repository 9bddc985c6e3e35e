package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/occurrence/density/{z}/{x}/{y}.mvt", 200, 0.001)
	IncTileAssembled("density", "hit")
	AddSaltLookups("ok", 4)
	AddRegressionCells(12)
	SetInvalidationLagSeconds(0.5)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"app_build_info",
		"http_requests_total",
		"tiles_assembled_total",
		"salt_lookups_total",
		"regression_cells_total",
		"metastore_invalidation_lag_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics payload missing %q; got:\n%s", want, body)
		}
	}
}
