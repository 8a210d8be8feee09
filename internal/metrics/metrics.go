// Package metrics registers the Prometheus collectors exposed at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections tracks sockets currently registered for a chat.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "teamfinder",
		Subsystem: "chat",
		Name:      "active_connections",
		Help:      "Number of live chat connections registered across all rooms.",
	})

	// MessagesPersisted counts messages appended to the chat store.
	MessagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "teamfinder",
		Subsystem: "chat",
		Name:      "messages_persisted_total",
		Help:      "Messages appended to the chat store.",
	})

	// DeliveriesTotal counts successful fan-out sends to recipients.
	DeliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "teamfinder",
		Subsystem: "chat",
		Name:      "deliveries_total",
		Help:      "Messages handed to live recipient connections.",
	})

	// DeliveryFailures counts fan-out sends that failed and pruned the
	// recipient connection.
	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "teamfinder",
		Subsystem: "chat",
		Name:      "delivery_failures_total",
		Help:      "Fan-out sends that failed and removed the recipient.",
	})

	// HTTPInFlight tracks REST requests currently being served.
	HTTPInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "teamfinder",
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "REST requests currently being served.",
	})

	// HTTPRequests counts served REST requests by method and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teamfinder",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "REST requests served.",
	}, []string{"method", "status"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
