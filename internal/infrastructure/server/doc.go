// Package server assembles the demo server: a gin router whose /demo routes
// run inside traced web transactions, the agent's debug API, Prometheus
// exposure of the metric table, and the optional instrumented Redis,
// Postgres, peer HTTP and OpenTelemetry backends.
package server
