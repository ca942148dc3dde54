// Package config loads agent configuration.
//
// Load reads environment variables with defaults. LoadFile reads a YAML or
// TOML file first and lets any environment variable that is set win.
//
// Sections:
//   - App: application name used in path hashes
//   - CrossApp: cross-application tracing, encoding key and trusted accounts
//   - Datastore: instance and database name reporting
//   - SlowSQL: slow query threshold and explain plan limits
//   - Logging, Metrics, Server
//
// Environment Variables:
//   - APM_APP_NAME, APM_STRICT_INTEGRITY
//   - APM_CAT_ENABLED, APM_CROSS_PROCESS_ID, APM_ENCODING_KEY, APM_TRUSTED_ACCOUNT_IDS
//   - APM_DATASTORE_INSTANCE_REPORTING, APM_DATASTORE_DATABASE_NAME_REPORTING
//   - APM_SLOW_SQL_THRESHOLD, APM_SLOW_SQL_MAX_SAMPLES
//   - APM_EXPLAIN_ENABLED, APM_EXPLAIN_THRESHOLD, APM_EXPLAIN_PER_SECOND
//   - LOG_LEVEL, LOG_DEV, APM_METRICS_NAMESPACE, PORT, HOST
package config
