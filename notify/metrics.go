package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scheduledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livpred_reminders_scheduled_total",
		Help: "Reminders registered, by delivery mechanism.",
	}, []string{"mechanism"})

	fallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livpred_reminders_exact_fallback_total",
		Help: "Exact alarm registrations that failed and fell back to deferred work.",
	})

	firedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livpred_reminders_fired_total",
		Help: "Reminders that fired, by mechanism and delivery result.",
	}, []string{"mechanism", "result"})

	cancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livpred_reminders_cancelled_total",
		Help: "Reminders cancelled, by mechanism and reason.",
	}, []string{"mechanism", "reason"})
)
