// Package otel publishes flowAuth engine metrics through an OpenTelemetry
// Meter.
//
// Counters become Int64ObservableCounter instruments. Each pipeline duration
// histogram becomes one cumulative bucket gauge keyed by an "le" attribute,
// plus count and sum gauges. A single callback reads
// [flowAuth.Engine.MetricsSnapshot] per collection; callers own the
// MeterProvider.
package otel
