package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livpred_aggregate_runs_total",
		Help: "Fan-out aggregations by name and terminal state.",
	}, []string{"name", "state"})

	duration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "livpred_aggregate_duration_seconds",
		Help:    "Wall time of fan-out aggregations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"name"})
)
