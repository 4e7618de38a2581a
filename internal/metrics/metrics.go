package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks vendor fetch outcomes per comparison.
	VendorFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecheck_vendor_fetch_total",
			Help: "Total vendor fetch attempts (by vendor and quote status).",
		},
		[]string{"vendor", "status"},
	)

	// Measures how long each vendor takes to answer or time out.
	VendorFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricecheck_vendor_fetch_duration_seconds",
			Help:    "Duration of vendor fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms → ~100s
		},
		[]string{"vendor"},
	)

	// Tracks comparison calls.
	ComparisonsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricecheck_comparisons_total",
			Help: "Total comparison queries served.",
		},
	)

	// Tracks exchange-rate feed lookups.
	RateFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecheck_rate_fetch_total",
			Help: "Exchange-rate feed lookups (result = ok | error).",
		},
		[]string{"result"},
	)
)

func ObserveVendorFetch(vendor, status string, start time.Time) {
	VendorFetchTotal.WithLabelValues(vendor, status).Inc()
	VendorFetchDuration.WithLabelValues(vendor).Observe(time.Since(start).Seconds())
}

func IncComparison() {
	ComparisonsTotal.Inc()
}

func IncRateFetch(result string) {
	RateFetchTotal.WithLabelValues(result).Inc()
}
