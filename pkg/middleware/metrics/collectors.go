package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "http response time.",
			Buckets: []float64{0.005, 0.05, 0.5, 1, 5, 10, 30, 60},
		},
	)

	totalHttpRequestsFromRole = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_from_role", Help: "http requests from role"},
		[]string{"role"},
	)

	totalHttpRequestsToUri = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_to_uri", Help: "http requests to uri"},
		[]string{"code", "uri", "method"},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests", Help: "http requests by code, and method"},
		[]string{"code", "method"},
	)

	layersInvoked = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "layman_layers_invoked_total", Help: "layers invoked, by mode"},
		[]string{"mode"},
	)

	suspensions = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "layman_suspensions_total", Help: "chains parked waiting for a resume"},
	)

	dispatchesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "layman_dispatches_finished_total", Help: "chains finished, by outcome"},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsFromRole,
		totalHttpRequestsToUri,
		totalHttpRequests,
		layersInvoked,
		suspensions,
		dispatchesFinished,
	)
}
