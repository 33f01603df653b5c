package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch metrics
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpterminal_dispatch_total",
			Help: "Dispatched messages by intent and outcome",
		},
		[]string{"intent", "outcome"}, // outcome: success|failure
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dpterminal_dispatch_duration_seconds",
			Help:    "End-to-end dispatch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"intent"},
	)

	// External service metrics
	ExternalCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpterminal_external_calls_total",
			Help: "Calls to external services",
		},
		[]string{"service", "status"}, // status: success|error|rate_limited|<kind>
	)

	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dpterminal_external_latency_seconds",
			Help:    "External service latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
		},
		[]string{"service"},
	)

	// Social publishing
	Publications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpterminal_publications_total",
			Help: "Social feed publish attempts",
		},
		[]string{"provider", "status"}, // status: success|error|skipped
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpterminal_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "method", "code"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dpterminal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Event stream
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpterminal_kafka_messages_total",
			Help: "Dispatch events written to Kafka",
		},
		[]string{"topic", "status"},
	)
)

var initOnce sync.Once

// Init registers all metrics with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			DispatchTotal,
			DispatchDuration,
			ExternalCalls,
			ExternalLatency,
			Publications,
			HTTPRequests,
			HTTPDuration,
			KafkaMessages,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDispatch records one handled message
func RecordDispatch(intent string, duration time.Duration, failed bool) {
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	DispatchTotal.WithLabelValues(intent, outcome).Inc()
	DispatchDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

// RecordExternalCall records a call to price feed, completion or image APIs
func RecordExternalCall(service string, latency time.Duration, status string) {
	ExternalCalls.WithLabelValues(service, status).Inc()
	ExternalLatency.WithLabelValues(service).Observe(latency.Seconds())
}

// RecordPublication records a social publish attempt
func RecordPublication(provider, status string) {
	Publications.WithLabelValues(provider, status).Inc()
}

// RecordHTTPRequest records a served request
func RecordHTTPRequest(route, method string, code int, duration time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordKafkaMessage records a produced event
func RecordKafkaMessage(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, status).Inc()
}

// StatusFromError maps nil to "success" and anything else to "error"
func StatusFromError(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
