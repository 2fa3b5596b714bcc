package ingest

import "github.com/prometheus/client_golang/prometheus"

var outcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wattsup",
	Subsystem: "ingest",
	Name:      "webhook_events_total",
	Help:      "Number of webhook events handled, grouped by outcome.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(outcomeCounter)
}

func recordOutcome(outcome Outcome) {
	outcomeCounter.WithLabelValues(string(outcome.Kind)).Inc()
}
