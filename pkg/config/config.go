package config

// Config is the umbrella configuration object returned by Initialize and
// passed to every component at startup.
type Config struct {
	configDir string // Configuration directory path (for reference)

	Server    *ServerConfig
	Log       *LogConfig
	Analysis  *AnalysisConfig
	Queue     *QueueConfig
	Query     *QueryConfig
	Stream    *StreamConfig
	Storage   *StorageConfig
	Retention *RetentionConfig
	Auth      *AuthConfig
	Slack     *SlackConfig
	Telemetry *TelemetryConfig
}

// Default returns a configuration made only of built-in defaults.
// Used when no configuration directory is given (e.g. local CLI runs).
func Default() *Config {
	return &Config{
		Server:    defaultServerConfig(),
		Log:       defaultLogConfig(),
		Analysis:  DefaultAnalysisConfig(),
		Queue:     DefaultQueueConfig(),
		Query:     DefaultQueryConfig(),
		Stream:    DefaultStreamConfig(),
		Storage:   DefaultStorageConfig(),
		Retention: DefaultRetentionConfig(),
		Auth:      defaultAuthConfig(),
		Slack:     defaultSlackConfig(),
		Telemetry: defaultTelemetryConfig(),
	}
}

// Stats contains configuration facts worth logging at startup
type Stats struct {
	StorageDriver string
	Workers       int
	LLMEnabled    bool
	SlackEnabled  bool
	Tracing       bool
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	return Stats{
		StorageDriver: c.Storage.Driver,
		Workers:       c.Queue.WorkerCount,
		LLMEnabled:    c.Query.LLM.Enabled(),
		SlackEnabled:  c.Slack.Enabled,
		Tracing:       c.Telemetry.OTLPEndpoint != "",
	}
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}
