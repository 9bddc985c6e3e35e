// Package search is the Search Backend Adapter: it turns a tile's
// buffered geographic envelope into an ad-hoc aggregation query against
// an external search index and decodes the per-cell document counts
// it returns. It knows nothing about tiles, projections, or binning —
// those live in internal/assembler and internal/binning.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gbif/mvt-tile-server/internal/apierr"
	"github.com/gbif/mvt-tile-server/internal/core/observability"
	"github.com/gbif/mvt-tile-server/internal/projection"
)

// Bucket is one cell of a geogrid aggregation response: a geographic
// rectangle plus the number of documents it contains.
type Bucket struct {
	MinLng, MinLat float64
	MaxLng, MaxLat float64
	DocCount       int64
}

type geoGridResponse struct {
	Buckets []struct {
		DocCount int64 `json:"doc_count"`
		Bounds   struct {
			TopLeft struct {
				Lon float64 `json:"lon"`
				Lat float64 `json:"lat"`
			} `json:"top_left"`
			BottomRight struct {
				Lon float64 `json:"lon"`
				Lat float64 `json:"lat"`
			} `json:"bottom_right"`
		} `json:"bounds"`
	} `json:"buckets"`
}

// Adapter queries a search backend's geogrid aggregation endpoint over
// HTTP, the same shape the original service's Elasticsearch-backed
// heatmap service returns.
type Adapter struct {
	client   *http.Client
	endpoint *url.URL
}

func New(client *http.Client, endpoint string) (*Adapter, error) {
	if client == nil {
		client = http.DefaultClient
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, apierr.Configuration("search.New", "parsing search endpoint", err)
	}
	return &Adapter{client: client, endpoint: u}, nil
}

// Query asks the backend for a geogrid aggregation over box, with an
// optional CQL-like filter string appended as a query parameter. It
// returns the raw buckets; normalising them into tile-pixel geometry
// is the assembler's job.
func (a *Adapter) Query(ctx context.Context, box projection.LatLngBox, filters string) ([]Bucket, error) {
	q := url.Values{}
	q.Set("geometry", fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", box.MinLng, box.MinLat, box.MaxLng, box.MaxLat))
	if filters != "" {
		q.Set("q", filters)
	}

	target := *a.endpoint
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, apierr.Backend("search.Query", "building request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	observability.ObserveUpstreamLatency("search", time.Since(start).Seconds())
	if err != nil {
		return nil, apierr.Backend("search.Query", "calling search backend", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.Backend("search.Query", "search backend returned status "+strconv.Itoa(resp.StatusCode), nil)
	}

	var gr geoGridResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, apierr.Codec("search.Query", "decoding geogrid response", err)
	}

	out := make([]Bucket, 0, len(gr.Buckets))
	for _, b := range gr.Buckets {
		if b.DocCount <= 0 {
			continue
		}
		out = append(out, Bucket{
			MinLng:   b.Bounds.TopLeft.Lon,
			MaxLat:   b.Bounds.TopLeft.Lat,
			MaxLng:   b.Bounds.BottomRight.Lon,
			MinLat:   b.Bounds.BottomRight.Lat,
			DocCount: b.DocCount,
		})
	}
	if len(out) == 0 {
		return nil, apierr.NoData("search.Query", "no buckets for query")
	}
	return out, nil
}
