// Package main runs the apmtrace demo server.
//
// Every request under /demo runs in a web transaction: datastore calls to the
// optional Redis and Postgres backends and HTTP calls to the optional peer
// service are timed as segments, and cross-application tracing headers are
// accepted and answered. The agent's own state is served under /debug and
// Prometheus metrics under /metrics.
//
// Configuration:
//   - Environment variables (APM_*, LOG_*, PORT, HOST)
//   - A YAML or TOML file given with -config; set environment variables
//     still win
//   - CLI flags override both
//
// Usage:
//
//	./server -config apm.yaml
//	APM_REDIS_ADDR=localhost:6379 ./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
