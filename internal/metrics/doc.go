// Package metrics keeps climdiff's process counters and exposes them in
// the Prometheus text exposition format.
//
// Families:
//
//	climdiff_runs_total{state}                              counter
//	climdiff_catalogue_retrievals_total{experiment,source}  counter
//	climdiff_run_duration_seconds                           summary (sum and count)
//	climdiff_catalogue_cert_days_left                       gauge
//
// Values are held in a Registry and converted to client_model
// MetricFamily messages on every scrape, then written with the expfmt
// encoder. The registry is safe for concurrent use.
package metrics
