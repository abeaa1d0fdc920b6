package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	streamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "iptvcore_gateway_streams_active",
		Help: "Number of live stream proxy sessions currently open.",
	})

	streamsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iptvcore_gateway_streams_opened_total",
		Help: "Total live stream proxy sessions opened.",
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvcore_gateway_errors_total",
		Help: "Gateway handler errors by operation.",
	}, []string{"op"})

	authFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iptvcore_gateway_auth_failures_total",
		Help: "Downstream requests with unrecognized username/password.",
	})
)

func recordError(op string) {
	errorsTotal.WithLabelValues(op).Inc()
}

func recordAuthFailure() {
	authFailuresTotal.Inc()
}

func recordStreamOpened() {
	streamsOpenedTotal.Inc()
	streamsActive.Inc()
}

func recordStreamClosed() {
	streamsActive.Dec()
}

// MetricsHandler exposes the process's registered collectors in Prometheus
// exposition format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
