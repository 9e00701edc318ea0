package dafny

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// gutterUpdates counts gutter recomputations by outcome.
	gutterUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dafny_mcp_gutter_updates_total",
		Help: "Gutter recomputations by result (applied, discarded, skipped, failed)",
	}, []string{"result"})

	gutterUpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dafny_mcp_gutter_update_duration_seconds",
		Help:    "Time from trigger to gutter outcome, including the symbol request",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})
)

func observeUpdate(result string, start time.Time) {
	gutterUpdates.WithLabelValues(result).Inc()
	gutterUpdateDuration.Observe(time.Since(start).Seconds())
}
