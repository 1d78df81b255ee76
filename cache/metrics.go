package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livpred_cache_lookups_total",
		Help: "TTL cache lookups by cache name and result (hit, miss, expired)",
	}, []string{"cache", "result"})

	entries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "livpred_cache_entries",
		Help: "Entries currently held by a TTL cache, expired ones included",
	}, []string{"cache"})
)
