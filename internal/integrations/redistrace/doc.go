// Package redistrace records go-redis commands as datastore segments of the
// transaction carried by the command's context.
package redistrace
