package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	reportGenerations     *prometheus.CounterVec
	reportLatencySeconds  *prometheus.HistogramVec
	renderJobsTotal       *prometheus.CounterVec
	renderDurationSeconds prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors for the API and the render worker.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		reportGenerations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_generations_total",
			Help: "Reports served, by kind and whether they were computed or read from cache.",
		}, []string{"kind", "source"})

		reportLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "report_generation_seconds",
			Help:    "Time spent computing a report.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"kind"})

		renderJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "render_jobs_total",
			Help: "Document render jobs processed by outcome.",
		}, []string{"outcome"})

		renderDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "render_job_duration_seconds",
			Help:    "Wall clock duration of document render jobs.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			reportGenerations,
			reportLatencySeconds,
			renderJobsTotal,
			renderDurationSeconds,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ReportGenerations counts served reports.
func ReportGenerations() *prometheus.CounterVec {
	RegisterMetrics()
	return reportGenerations
}

// ReportLatency exposes the report computation histogram.
func ReportLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return reportLatencySeconds
}

// RenderJobs counts render jobs by outcome.
func RenderJobs() *prometheus.CounterVec {
	RegisterMetrics()
	return renderJobsTotal
}

// RenderDuration exposes the render job duration histogram.
func RenderDuration() prometheus.Histogram {
	RegisterMetrics()
	return renderDurationSeconds
}
