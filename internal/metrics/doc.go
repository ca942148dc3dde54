/*
Package metrics holds the aggregation side of the tracer.

Finished segments are turned into batches of Observation values and handed to
an Aggregator. The tracer never reads metrics back; the Aggregator is the only
state shared between transactions.

# Implementations

  - Discard: the no-op sink used when nothing is configured
  - Table: an in-memory store that merges observations into per-metric
    Stats buckets. Each bucket has its own lock, so transactions finishing on
    different goroutines only contend when they touch the same metric.
  - Recorder: keeps raw batches, for tests

# Harvest

	table := metrics.NewTable()
	// ... transactions merge into table ...
	snapshot := table.Harvest()
	body, err := metrics.EncodePayload(metrics.NewPayload("checkout", start, end, snapshot))

EncodePayload produces gzip-compressed JSON. Shipping it anywhere is the
caller's business.
*/
package metrics
