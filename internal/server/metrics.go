// Package-level Prometheus metrics for the HTTP layer. Registered with the
// default registry at init; exposed via the metrics endpoint when enabled.

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fireside"

// requestsTotal counts completed HTTP requests.
// Labels:
//   - method: HTTP method
//   - path: request path
//   - status: numeric response status
var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests handled.",
	},
	[]string{"method", "path", "status"},
)

// requestDuration measures request handling time end-to-end.
var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP request handling.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path"},
)
