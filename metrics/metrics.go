// Package metrics holds the Prometheus collectors shared by the server and the bulk runner.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

var (
	GenerationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_requests_total",
		Help: "Generation requests by mode (single, bulk, api) and outcome",
	}, []string{"mode", "outcome"})

	UsageDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_denials_total",
		Help: "Requests refused because the account reached its usage limit",
	}, []string{"mode"})

	BulkRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_rows_total",
		Help: "Bulk rows processed by outcome",
	}, []string{"outcome"})

	BulkJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_jobs_total",
		Help: "Bulk jobs by final status",
	}, []string{"status"})

	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_duration_seconds",
		Help:    "Time spent generating content for one product",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
	}, []string{"backend"})
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
