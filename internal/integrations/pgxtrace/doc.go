// Package pgxtrace implements pgx.QueryTracer. Each query becomes a Postgres
// datastore segment of the transaction in the query context, and its SQL is
// offered to the slow query sampler.
package pgxtrace
