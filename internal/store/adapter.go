// Package store is the Tile Store Adapter: it resolves a map key and
// tile address to the salted rows that make up its data, fans the
// lookups out across salt buckets through a bounded worker pool, and
// decodes each bucket's row before concatenating the features.
package store

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gbif/mvt-tile-server/internal/apierr"
	"github.com/gbif/mvt-tile-server/internal/core/observability"
	"github.com/gbif/mvt-tile-server/internal/projection"
	"github.com/gbif/mvt-tile-server/internal/store/keys"
	"github.com/gbif/mvt-tile-server/internal/store/redisstore"
	"github.com/gbif/mvt-tile-server/internal/vectortile"
)

// Adapter is the read path onto the partitioned tile table. It never
// writes tile data itself — rows are populated by an external batch
// pipeline, out of scope for this service.
type Adapter struct {
	redis   *redisstore.Client
	l1      *lru.Cache[string, []byte]
	workers int
}

// NewAdapter builds an Adapter. l1Size <= 0 disables the in-process
// row cache. workers <= 0 defaults to 8, mirroring the fan-out width
// the teacher's cache-fill pool used.
func NewAdapter(redis *redisstore.Client, l1Size, workers int) (*Adapter, error) {
	a := &Adapter{redis: redis, workers: workers}
	if a.workers <= 0 {
		a.workers = 8
	}
	if l1Size > 0 {
		c, err := lru.New[string, []byte](l1Size)
		if err != nil {
			return nil, apierr.Configuration("store.NewAdapter", "building L1 cache", err)
		}
		a.l1 = c
	}
	return a, nil
}

type saltJob struct {
	idx int
	key string
}

type saltResult struct {
	idx  int
	data []byte
	err  error
}

// GetTileParts returns the raw row bytes for mapKey/addr, one slot per
// salt bucket in bucket order. A nil slot means that bucket has no row
// for this tile. Buckets are looked up in parallel, first against the
// L1 cache and then, for whatever's missing, against Redis via a
// worker pool sized to a.workers.
func (a *Adapter) GetTileParts(ctx context.Context, mapKey string, saltModulus int, addr projection.TileAddress) ([][]byte, error) {
	rowKeys := keys.AllRowKeys(mapKey, saltModulus, addr)
	parts := make([][]byte, len(rowKeys))

	var missing []saltJob
	for i, k := range rowKeys {
		if a.l1 != nil {
			if v, ok := a.l1.Get(k); ok {
				parts[i] = v
				continue
			}
		}
		missing = append(missing, saltJob{idx: i, key: k})
	}
	if len(missing) == 0 {
		return parts, nil
	}

	jobs := make(chan saltJob, len(missing))
	results := make(chan saltResult, len(missing))

	workerN := a.workers
	if workerN > len(missing) {
		workerN = len(missing)
	}

	var wg sync.WaitGroup
	wg.Add(workerN)
	for w := 0; w < workerN; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				data, ok, err := a.redis.Get(ctx, j.key)
				// Each bucket gets up to 3 attempts, waiting 50ms and then
				// 100ms between them.
				for attempt := 1; err != nil && attempt < 3 && ctx.Err() == nil; attempt++ {
					select {
					case <-time.After(50 * time.Millisecond << (attempt - 1)):
					case <-ctx.Done():
					}
					data, ok, err = a.redis.Get(ctx, j.key)
				}
				if err != nil {
					results <- saltResult{idx: j.idx, err: err}
					continue
				}
				if !ok {
					results <- saltResult{idx: j.idx}
					continue
				}
				results <- saltResult{idx: j.idx, data: data}
			}
		}()
	}
	for _, j := range missing {
		jobs <- j
	}
	close(jobs)
	wg.Wait()
	close(results)

	var firstErr error
	hits, misses := 0, 0
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			misses++
			continue
		}
		if r.data == nil {
			misses++
			continue
		}
		hits++
		parts[r.idx] = r.data
		if a.l1 != nil {
			a.l1.Add(rowKeys[r.idx], r.data)
		}
	}
	observability.AddSaltLookups("hit", hits)
	observability.AddSaltLookups("miss", misses)
	if firstErr != nil {
		return nil, apierr.Backend("store.GetTileParts", "salt bucket fan-out failed", firstErr)
	}
	return parts, nil
}

// GetTile fetches every salt bucket for mapKey/addr and decodes+
// concatenates their features. Salt buckets partition disjoint
// occurrence records, so unlike a general result merge there is no
// need to dedup by feature id here — that only matters once features
// are aggregated into bins.
func (a *Adapter) GetTile(ctx context.Context, mapKey string, saltModulus int, addr projection.TileAddress) ([]vectortile.Feature, error) {
	parts, err := a.GetTileParts(ctx, mapKey, saltModulus, addr)
	if err != nil {
		return nil, err
	}

	var out []vectortile.Feature
	empty := true
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		empty = false
		feats, err := vectortile.Decode(p)
		if err != nil {
			return nil, apierr.Codec("store.GetTile", "decoding salt bucket row", err)
		}
		out = append(out, feats...)
	}
	if empty {
		return nil, apierr.NoData("store.GetTile", "no rows for "+mapKey+" at "+addr.String())
	}
	return out, nil
}
