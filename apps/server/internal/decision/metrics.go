package decision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluff",
		Name:      "decisions_total",
		Help:      "Decisions returned, by action type and source.",
	}, []string{"type", "source"})
	recoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluff",
		Name:      "decisions_recovered_total",
		Help:      "Decisions that fell back to Pass, by reason.",
	}, []string{"reason"})
	signalFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluff",
		Name:      "signal_failures_total",
		Help:      "Signal sources replaced by their neutral default.",
	}, []string{"signal"})
	lockSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluff",
		Name:      "lock_skips_total",
		Help:      "Guarded updates skipped because the lock was unavailable.",
	}, []string{"key"})
	persistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluff",
		Name:      "persistence_failures_total",
		Help:      "Document writes that failed after retries.",
	}, []string{"document"})
	decideSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bluff",
		Name:      "decide_duration_seconds",
		Help:      "Wall time of Decide calls.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	})
)
