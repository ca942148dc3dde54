/*
Package monitoring exposes tracer health and aggregated APM metrics to Prometheus.

# Overview

Two things live here:

  - Metrics: counters and histograms describing the tracer itself (segments
    finished, integrity violations, swallowed hook failures, CAT header
    outcomes, open transactions)
  - TableCollector: a prometheus.Collector that renders the contents of a
    metrics.Table on every scrape

Every Metrics method is nil-safe, so the tracing core can be built without a
registry.

# Usage

	reg := prometheus.NewRegistry()
	self := monitoring.NewMetrics(reg)
	table := metrics.NewTable()
	reg.MustRegister(monitoring.NewTableCollector(table, "apm"))

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
