package config

import "time"

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// SlackConfig holds resolved Slack notification settings.
type SlackConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Token        string `yaml:"token"`
	Channel      string `yaml:"channel"`
	DashboardURL string `yaml:"dashboard_url"`
}

// TelemetryConfig configures OpenTelemetry export. Tracing is disabled when
// OTLPEndpoint is empty.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

func defaultServerConfig() *ServerConfig {
	return &ServerConfig{Addr: ":8000"}
}

func defaultLogConfig() *LogConfig {
	return &LogConfig{Level: "info", Format: "text"}
}

func defaultAuthConfig() *AuthConfig {
	return &AuthConfig{Issuer: "adaa", TokenTTL: 24 * time.Hour}
}

func defaultSlackConfig() *SlackConfig {
	return &SlackConfig{DashboardURL: "http://localhost:3000"}
}

func defaultTelemetryConfig() *TelemetryConfig {
	return &TelemetryConfig{ServiceName: "adaa"}
}
