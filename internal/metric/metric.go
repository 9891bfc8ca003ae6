// Package metric holds the Prometheus collectors exported at /metrics.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Validation results.
const (
	ResultValid    = "valid"
	ResultInvalid  = "invalid"
	ResultError    = "error"
	ResultRejected = "rejected"
	ResultIssued   = "issued"
)

var (
	APIKeyValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insightdesk",
			Name:      "apikey_validations_total",
			Help:      "API key validations by outcome",
		},
		[]string{"result"},
	)

	TokenRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insightdesk",
			Name:      "token_requests_total",
			Help:      "Token endpoint requests by grant type and outcome",
		},
		[]string{"grant_type", "result"},
	)

	AuthenticatedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insightdesk",
			Name:      "authenticated_requests_total",
			Help:      "Requests passing or failing authentication, by scheme",
		},
		[]string{"scheme", "result"},
	)
)

// Register adds all collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIKeyValidations, TokenRequests, AuthenticatedRequests)
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
