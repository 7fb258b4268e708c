// Package otel publishes procureauth counters through OpenTelemetry.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine metric
// and one Int64ObservableGauge per latency bucket. A single callback reads
// [procureauth.Engine.MetricsSnapshot] on each collection cycle.
// [NewMeterProvider] builds an OTLP/HTTP push provider for hosts that have
// no collector of their own.
package otel
