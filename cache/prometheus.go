package cache

import (
	"github.com/poiesic/chaptercache/core"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "chaptercache"

// PrometheusMonitor exports cache activity as Prometheus metrics.
type PrometheusMonitor struct {
	hits          *prometheus.CounterVec
	misses        prometheus.Counter
	splits        prometheus.Counter
	chapterWrites prometheus.Counter
	reassembled   prometheus.Histogram
	evictions     prometheus.Counter
	evictedBytes  prometheus.Counter
}

var _ Monitor = (*PrometheusMonitor)(nil)

// NewPrometheusMonitor creates the cache metrics and registers them with reg.
func NewPrometheusMonitor(reg prometheus.Registerer) (*PrometheusMonitor, error) {
	m := &PrometheusMonitor{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "hits_total",
			Help:      "Entries served by Get, by stored form.",
		}, []string{"kind"}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "misses_total",
			Help:      "Get calls that found no live entry.",
		}),
		splits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "splits_total",
			Help:      "Book entries written as a manifest plus chapter records.",
		}),
		chapterWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "chapter_writes_total",
			Help:      "Chapter records written by splits.",
		}),
		reassembled: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "reassembled_chapters",
			Help:      "Chapters found per reassembled book.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 150},
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evicted_records_total",
			Help:      "Records removed by eviction.",
		}),
		evictedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evicted_bytes_total",
			Help:      "Bytes freed by eviction.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.hits, m.misses, m.splits, m.chapterWrites, m.reassembled, m.evictions, m.evictedBytes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMonitor) Hit(_ string, kind core.ChunkKind) {
	m.hits.WithLabelValues(kind.String()).Inc()
}

func (m *PrometheusMonitor) Miss(_ string) {
	m.misses.Inc()
}

func (m *PrometheusMonitor) Split(_ string, chapters int) {
	m.splits.Inc()
	m.chapterWrites.Add(float64(chapters))
}

func (m *PrometheusMonitor) Reassemble(_ string, chapters int) {
	m.reassembled.Observe(float64(chapters))
}

func (m *PrometheusMonitor) Evict(records int, bytes int64) {
	m.evictions.Add(float64(records))
	m.evictedBytes.Add(float64(bytes))
}
