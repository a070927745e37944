package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	signalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spothook_signals_total",
		Help: "Webhook signals handled, by action and outcome",
	}, []string{"action", "outcome"})

	exchangeRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spothook_exchange_requests_total",
		Help: "Requests sent to the exchange REST API, by result (ok, invalid_json, api_error, transport_error)",
	}, []string{"method", "path", "result"})

	exchangeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spothook_exchange_request_duration_seconds",
		Help:    "Exchange REST round-trip time",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

func init() {
	prometheus.MustRegister(signalsTotal, exchangeRequests, exchangeLatency)
}

// ObserveSignal counts one dispatched webhook signal.
func ObserveSignal(action, outcome string) {
	if action == "" {
		action = "none"
	}
	signalsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveExchange records one exchange round trip.
func ObserveExchange(method, path, result string, took time.Duration) {
	exchangeRequests.WithLabelValues(method, path, result).Inc()
	exchangeLatency.WithLabelValues(method, path).Observe(took.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
