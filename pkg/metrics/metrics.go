package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Document metrics
	DocumentsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstream_documents_submitted_total",
			Help: "Total number of submitted documents by kind",
		},
		[]string{"kind"},
	)

	// Queue metrics
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docstream_queue_depth",
			Help: "Number of jobs per queue partition",
		},
		[]string{"partition"},
	)

	JobsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstream_jobs_processed_total",
			Help: "Total number of jobs completed successfully",
		},
	)

	JobsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstream_jobs_failed_total",
			Help: "Total number of jobs that failed",
		},
	)

	JobsRecovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstream_jobs_recovered_total",
			Help: "Total number of stale jobs re-enqueued from dead workers",
		},
	)

	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstream_processing_duration_seconds",
			Help:    "Time taken to process one document in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Worker metrics
	WorkersLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docstream_workers_live",
			Help: "Number of workers with a live heartbeat",
		},
	)

	// Model gateway metrics
	ModelCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstream_model_call_duration_seconds",
			Help:    "Model call duration in seconds by provider",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ModelCallFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstream_model_call_fallbacks_total",
			Help: "Total number of tool calls that used the degraded fallback",
		},
		[]string{"tool"},
	)

	// Event bus metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstream_events_published_total",
			Help: "Total number of lifecycle events published by topic",
		},
		[]string{"topic"},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstream_events_dropped_total",
			Help: "Total number of events dropped due to slow subscribers",
		},
	)
)

func init() {
	prometheus.MustRegister(DocumentsSubmitted)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(JobsProcessed)
	prometheus.MustRegister(JobsFailed)
	prometheus.MustRegister(JobsRecovered)
	prometheus.MustRegister(ProcessingDuration)
	prometheus.MustRegister(WorkersLive)
	prometheus.MustRegister(ModelCallDuration)
	prometheus.MustRegister(ModelCallFallbacks)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventsDropped)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
