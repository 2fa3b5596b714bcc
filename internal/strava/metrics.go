package strava

import "github.com/prometheus/client_golang/prometheus"

var tokenRefreshCounter = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "wattsup",
	Subsystem: "strava",
	Name:      "token_refreshes_total",
	Help:      "Number of successful Strava token refresh exchanges.",
})

func init() {
	prometheus.MustRegister(tokenRefreshCounter)
}

func recordTokenRefreshed() {
	tokenRefreshCounter.Inc()
}
