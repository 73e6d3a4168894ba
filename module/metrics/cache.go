package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pixanchor/pixanchor/module"
)

type CacheCollector struct {
	entries  *prometheus.GaugeVec
	hits     *prometheus.CounterVec
	notFound *prometheus.CounterVec
	misses   *prometheus.CounterVec
}

var _ module.CacheMetrics = (*CacheCollector)(nil)

func NewCacheCollector(registerer prometheus.Registerer) *CacheCollector {
	r := NewRegisterer(registerer)
	return &CacheCollector{
		entries: r.RegisterNewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemCache,
			Name:      "entries_total",
			Help:      "the number of entries in the cache",
		}, []string{LabelResource}),
		hits: r.RegisterNewCounterVec(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemCache,
			Name:      "hits_total",
			Help:      "the number of hits for the cache",
		}, []string{LabelResource}),
		notFound: r.RegisterNewCounterVec(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemCache,
			Name:      "notfound_total",
			Help:      "the number of times the queried item was not found in either cache or database",
		}, []string{LabelResource}),
		misses: r.RegisterNewCounterVec(prometheus.CounterOpts{
			Namespace: namespacePixanchor,
			Subsystem: subsystemCache,
			Name:      "misses_total",
			Help:      "the number of misses for the cache",
		}, []string{LabelResource}),
	}
}

func (cc *CacheCollector) CacheEntries(resource string, entries uint) {
	cc.entries.WithLabelValues(resource).Set(float64(entries))
}

func (cc *CacheCollector) CacheHit(resource string) {
	cc.hits.WithLabelValues(resource).Inc()
}

func (cc *CacheCollector) CacheNotFound(resource string) {
	cc.notFound.WithLabelValues(resource).Inc()
}

func (cc *CacheCollector) CacheMiss(resource string) {
	cc.misses.WithLabelValues(resource).Inc()
}
