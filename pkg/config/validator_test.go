package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAll_Defaults(t *testing.T) {
	require.NoError(t, NewValidator(Default()).ValidateAll())
}

func TestValidateAll(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		section string
		field   string
	}{
		{
			name:    "weights above one",
			mutate:  func(c *Config) { c.Analysis.Profiler.Weights.Missing = 0.9 },
			section: "analysis.profiler",
			field:   "weights",
		},
		{
			name:    "negative weight",
			mutate:  func(c *Config) { c.Analysis.Profiler.Weights.Outlier = -0.1 },
			section: "analysis.profiler",
			field:   "weights",
		},
		{
			name:    "severity bands out of order",
			mutate:  func(c *Config) { c.Analysis.Profiler.LowSeverityMax = 0.3 },
			section: "analysis.profiler",
			field:   "medium_severity_max",
		},
		{
			name:    "outlier detection below four points",
			mutate:  func(c *Config) { c.Analysis.Profiler.MinOutlierPoints = 2 },
			section: "analysis.profiler",
			field:   "min_outlier_points",
		},
		{
			name:    "correlation threshold above one",
			mutate:  func(c *Config) { c.Analysis.Insight.CorrelationThreshold = 1.5 },
			section: "analysis.insight",
			field:   "correlation_threshold",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Queue.WorkerCount = 0 },
			section: "queue",
			field:   "worker_count",
		},
		{
			name:    "jitter not below interval",
			mutate:  func(c *Config) { c.Queue.PollIntervalJitter = c.Queue.PollInterval },
			section: "queue",
			field:   "poll_interval_jitter",
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *Config) { c.Query.CacheTTL = 0 },
			section: "query",
			field:   "cache_ttl",
		},
		{
			name: "llm without model",
			mutate: func(c *Config) {
				c.Query.LLM.APIKey = "k"
				c.Query.LLM.Model = ""
			},
			section: "query.llm",
			field:   "model",
		},
		{
			name:    "zero reconnect backoff",
			mutate:  func(c *Config) { c.Stream.ReconnectBackoff = 0 * time.Second },
			section: "stream",
			field:   "reconnect_backoff",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverSQLite
				c.Storage.SQLitePath = " "
			},
			section: "storage",
			field:   "sqlite_path",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "short" },
			section: "auth",
			field:   "jwt_secret",
		},
		{
			name:    "slack enabled without token",
			mutate:  func(c *Config) { c.Slack.Enabled = true },
			section: "slack",
			field:   "token",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			section: "log",
			field:   "format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := NewValidator(cfg).ValidateAll()

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.section, vErr.Section)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}
