// Package http serves the agent's debug API: the live metric table, slow
// SQL samples, recently finished transaction traces and a CAT header
// decoder.
package http
