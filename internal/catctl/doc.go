// Package catctl implements the catctl command line tool, which encodes and
// decodes cross-application tracing headers and computes path hashes for
// debugging traffic between traced services.
package catctl
