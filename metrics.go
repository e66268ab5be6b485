package pathdex

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arcstep/pathdex/kv"
)

var UpdateCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pathdex",
	Subsystem: "indexed_store",
	Name:      "updates",
}, []string{"collection"})

var DeleteCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pathdex",
	Subsystem: "indexed_store",
	Name:      "deletes",
}, []string{"collection"})

var IndexEntriesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pathdex",
	Subsystem: "indexed_store",
	Name:      "index_entries_written",
}, []string{"collection"})

var IndexEntriesRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pathdex",
	Subsystem: "indexed_store",
	Name:      "index_entries_removed",
}, []string{"collection"})

var IndexQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pathdex",
	Subsystem: "indexed_store",
	Name:      "index_queries",
}, []string{"collection", "path"})

var RebuildCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pathdex",
	Subsystem: "indexed_store",
	Name:      "rebuilds",
}, []string{"collection"})

var RebuildDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "pathdex",
	Subsystem: "indexed_store",
	Name:      "rebuild_duration",
	Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200, 500},
}, []string{"collection"})

// RegisterMetrics puts the store counters on a registry, plus the backend
// health collector when the store runs on pebble.
func RegisterMetrics(reg prometheus.Registerer, db kv.Store) error {
	cs := []prometheus.Collector{
		UpdateCount, DeleteCount,
		IndexEntriesWritten, IndexEntriesRemoved,
		IndexQueries, RebuildCount, RebuildDuration,
	}
	if p, ok := db.(*kv.Pebble); ok {
		cs = append(cs, kv.NewPebbleCollector(p))
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
