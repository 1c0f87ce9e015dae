/*
Package metrics defines the Prometheus instrumentation for docstream.

Collectors are package-level vars registered in init() and shared across
packages; serve exposes them on the /metrics endpoint.

# Collectors

	docstream_documents_submitted_total     counter, by kind
	docstream_queue_depth                   gauge, by partition
	docstream_jobs_processed_total          counter
	docstream_jobs_failed_total             counter
	docstream_jobs_recovered_total          counter
	docstream_workers_live                  gauge
	docstream_processing_duration_seconds   histogram, by kind
	docstream_model_call_duration_seconds   histogram, by provider
	docstream_model_call_fallbacks_total    counter, by tool
	docstream_events_published_total        counter, by topic
	docstream_events_dropped_total          counter

NewTimer pairs with the histograms:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ProcessingDuration, string(kind))
*/
package metrics
