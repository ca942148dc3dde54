/*
Package tracing records transactions as trees of timed segments and turns
finished segments into named metric observations.

# Model

A Tracer holds process-wide state: configuration, the CAT codec, the metric
aggregator, the clock and optional samplers. Each unit of work is a
Transaction, driven by a single goroutine. Segments started on a transaction
form a strict stack: the most recently started segment must be the first to
finish.

Three segment kinds exist:

	KindCustom     name as given, no rollups
	KindDatastore  Datastore/statement|operation/... plus instance and all* rollups
	KindExternal   External/{host}/{library}/{procedure} plus External/* rollups,
	               renamed to ExternalTransaction/... when the callee answers with CAT app data

# Usage

	tracer := tracing.New(cfg, tracing.WithAggregator(table), tracing.WithLogger(log))

	txn := tracer.StartTransaction("GET /users", true)
	defer txn.End()

	seg := txn.StartDatastoreSegment(tracing.DatastoreParams{
		Product:    "Postgres",
		Operation:  "select",
		Collection: "users",
	})
	seg.NoticeSQL("SELECT * FROM users WHERE id = $1", nil, nil)
	rows, err := db.Query(...)
	seg.Finish()

# Failure model

Tracing never fails the host. Malformed peer headers and panicking request
adapters are logged and swallowed. Instrumentation bugs (double finish,
out of order finish, finishing an unstarted segment) are reported as
ErrIntegrity; with StrictIntegrity they panic, otherwise they are logged,
counted and repaired best effort.
*/
package tracing
