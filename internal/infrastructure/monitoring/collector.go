package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GriffinCanCode/apmtrace/internal/metrics"
)

// TableCollector renders a metrics.Table as Prometheus series
type TableCollector struct {
	table *metrics.Table

	calls     *prometheus.Desc
	total     *prometheus.Desc
	exclusive *prometheus.Desc
	max       *prometheus.Desc
}

// NewTableCollector creates a collector for table under namespace
func NewTableCollector(table *metrics.Table, namespace string) *TableCollector {
	labels := []string{"name", "scope"}
	return &TableCollector{
		table: table,
		calls: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "metric", "calls_total"),
			"Call count per APM metric", labels, nil,
		),
		total: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "metric", "duration_seconds_total"),
			"Total time per APM metric", labels, nil,
		),
		exclusive: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "metric", "exclusive_seconds_total"),
			"Exclusive time per APM metric", labels, nil,
		),
		max: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "metric", "max_seconds"),
			"Slowest call per APM metric", labels, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *TableCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.calls
	ch <- c.total
	ch <- c.exclusive
	ch <- c.max
}

// Collect implements prometheus.Collector
func (c *TableCollector) Collect(ch chan<- prometheus.Metric) {
	for key, s := range c.table.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.calls, prometheus.CounterValue, float64(s.CallCount), key.Name, key.Scope)
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, s.Total.Seconds(), key.Name, key.Scope)
		ch <- prometheus.MustNewConstMetric(c.exclusive, prometheus.CounterValue, s.Exclusive.Seconds(), key.Name, key.Scope)
		ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, s.Max.Seconds(), key.Name, key.Scope)
	}
}
