// Package prometheus renders flowAuth engine metrics in Prometheus text
// exposition format.
//
// Counters are named flowauth_*_total; the login and registration pipeline
// durations are flowauth_*_duration_seconds histograms. Callers mount
// [PrometheusExporter.Handler]; nothing is registered globally.
package prometheus
