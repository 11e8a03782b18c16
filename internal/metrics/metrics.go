// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion outcome label values.
const (
	OutcomeCaptured   = "captured"
	OutcomeNotFound   = "not_found"
	OutcomeBodyError  = "body_error"
	OutcomeStoreError = "store_error"
)

var (
	// IngestedTotal counts inbound calls to the public ingestion endpoint by
	// outcome.
	IngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspector_ingested_requests_total",
		Help: "Inbound ingestion calls by outcome.",
	}, []string{"outcome"})

	// EvictionsTotal counts captures removed by the retention trim.
	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspector_retention_evictions_total",
		Help: "Captured requests evicted by the per-endpoint retention cap.",
	})

	// LiveSessions tracks currently connected live viewer sessions.
	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inspector_live_sessions",
		Help: "Currently connected live viewer sessions.",
	})
)
