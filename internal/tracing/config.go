package tracing

// Config controls tracer behavior.
type Config struct {
	// AppName identifies this application in path hashes.
	AppName string

	CrossApp  CrossAppConfig
	Datastore DatastoreConfig

	// StrictIntegrity turns instrumentation bugs into panics.
	StrictIntegrity bool
}

// CrossAppConfig configures cross-application tracing.
type CrossAppConfig struct {
	Enabled           bool
	CrossProcessID    string
	EncodingKey       string
	TrustedAccountIDs []string
}

// DatastoreConfig configures datastore segment reporting.
type DatastoreConfig struct {
	InstanceReporting     bool
	DatabaseNameReporting bool
}

// DefaultConfig returns a configuration with CAT disabled.
func DefaultConfig() Config {
	return Config{
		AppName: "Go Application",
		Datastore: DatastoreConfig{
			InstanceReporting:     true,
			DatabaseNameReporting: true,
		},
	}
}
