// Package sqltrace keeps the slowest SQL statements seen by datastore
// segments and attaches explain plans to them.
//
// Statements below the slow threshold are ignored. Literals are replaced
// with "?" and statements are grouped by the hash of the result. Explain
// plans are requested only for new slowest calls above the explain threshold,
// no more often than the configured rate, and through a circuit breaker so a
// struggling database is left alone.
package sqltrace
