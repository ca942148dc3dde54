// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// The tracer logs every swallowed boundary failure at Debug and every
// integrity violation at Error, so production logs stay quiet unless the
// instrumentation itself is broken.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("agent starting", zap.String("app", "checkout"))
//	logger.Debug("cat header rejected", zap.Error(err))
package logging
