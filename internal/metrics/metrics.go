// Package metrics holds the Prometheus collectors for the lead marketplace engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClaimAttempts counts ClaimLead calls by outcome (ok or the error kind).
var ClaimAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "leadmarket",
	Subsystem: "claim",
	Name:      "attempts_total",
	Help:      "Total lead claim attempts by outcome.",
}, []string{"outcome"})

// ClaimDuration tracks end-to-end ClaimLead latency, retries included.
var ClaimDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "leadmarket",
	Subsystem: "claim",
	Name:      "duration_seconds",
	Help:      "Lead claim latency in seconds.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
})

var TxRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "leadmarket",
	Subsystem: "tx",
	Name:      "retries_total",
	Help:      "Total transaction attempts retried after a transient store error.",
})

var TxOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "leadmarket",
	Subsystem: "tx",
	Name:      "outcomes_total",
	Help:      "Total transaction runs by final outcome.",
}, []string{"outcome"})

// OutboxDeliveries counts relay results: published, failed, dead_lettered, duplicate.
var OutboxDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "leadmarket",
	Subsystem: "outbox",
	Name:      "deliveries_total",
	Help:      "Total notification deliveries by outcome.",
}, []string{"outcome"})

var ContractorReviews = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "leadmarket",
	Subsystem: "contractor",
	Name:      "reviews_total",
	Help:      "Total contractor review decisions that changed state.",
}, []string{"decision"})

// Outcome turns an error kind into a metric label.
func Outcome(kind string) string {
	if kind == "" {
		return "ok"
	}
	return kind
}
