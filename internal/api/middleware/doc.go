// Package middleware provides the demo server's gin middleware.
//
//   - CORS: cross-origin access that admits the CAT request headers and
//     exposes the App-Data response header to browser clients
//   - RateLimit: per-IP token buckets; idle clients are dropped
//   - GlobalRateLimit: one token bucket for every client
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
