package metastore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gbif/mvt-tile-server/pkg/metawatch/kafka"
)

// Watched starts from a static seed mapping and keeps it current by
// consuming table-update events from Kafka. Reads go through an
// atomic.Value snapshot so TableFor never blocks on the watcher
// goroutine, at the cost of a bounded propagation delay between an
// update landing on the topic and readers observing it.
type Watched struct {
	tables atomic.Value // map[string]string
	runner *kafka.Runner
}

func NewWatched(initial map[string]string, cfg kafka.Config, opts kafka.Options) *Watched {
	w := &Watched{}
	cp := make(map[string]string, len(initial))
	for k, v := range initial {
		cp[k] = v
	}
	w.tables.Store(cp)
	w.runner = kafka.New(cfg, w, opts)
	return w
}

func (w *Watched) TableFor(logical string) (string, error) {
	tables := w.tables.Load().(map[string]string)
	t, ok := tables[logical]
	if !ok {
		return "", fmt.Errorf("metastore: no table configured for logical map %q", logical)
	}
	return t, nil
}

// ApplyTable implements kafka.Sink. It copies the current mapping,
// updates the one logical name that changed, and swaps the snapshot
// atomically so concurrent readers never see a partially-applied map.
func (w *Watched) ApplyTable(logical, table string, _ uint64) error {
	old := w.tables.Load().(map[string]string)
	next := make(map[string]string, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[logical] = table
	w.tables.Store(next)
	return nil
}

func (w *Watched) Start(ctx context.Context) error { return w.runner.Start(ctx) }
func (w *Watched) Stop()                            { w.runner.Stop() }
func (w *Watched) Readiness() (bool, []int32)        { return w.runner.Readiness() }
