package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_cache_hits_total",
			Help: "Cache hits per partition",
		},
		[]string{"partition"},
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_cache_misses_total",
			Help: "Cache misses per partition, stale entries included",
		},
		[]string{"partition"},
	)

	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_cache_evictions_total",
			Help: "Entries evicted under capacity pressure",
		},
		[]string{"partition"},
	)

	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_cache_invalidations_total",
			Help: "Entries removed by explicit invalidation",
		},
		[]string{"partition"},
	)

	cacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "content_cache_entries",
			Help: "Current entry count per partition",
		},
		[]string{"partition"},
	)
)
