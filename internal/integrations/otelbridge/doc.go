// Package otelbridge replays finished transactions as OpenTelemetry spans so
// traces can be shipped through any OTel exporter.
package otelbridge
