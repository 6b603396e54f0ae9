package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "simple substitution with {{.VAR}}",
			input: "api_key: {{.GROQ_API_KEY}}",
			env:   map[string]string{"GROQ_API_KEY": "gsk-123"},
			want:  "api_key: gsk-123",
		},
		{
			name:  "literal ${VAR} is not expanded",
			input: "jwt_secret: ${SECRET}",
			env:   map[string]string{"SECRET": "nope"},
			want:  "jwt_secret: ${SECRET}",
		},
		{
			name:  "missing variable expands to empty",
			input: "token: {{.MISSING_VAR}}",
			env:   map[string]string{},
			want:  "token: ",
		},
		{
			name:  "value containing equals sign",
			input: "dsn: {{.DSN}}",
			env:   map[string]string{"DSN": "host=db port=5432"},
			want:  "dsn: host=db port=5432",
		},
		{
			name:  "special characters in expanded value",
			input: "jwt_secret: {{.JWT}}",
			env:   map[string]string{"JWT": "p@ss$w0rd!#"},
			want:  "jwt_secret: p@ss$w0rd!#",
		},
		{
			name:  "default used when unset",
			input: "worker_count: {{.ADAA_WORKERS | default \"4\"}}",
			env:   map[string]string{},
			want:  "worker_count: 4",
		},
		{
			name:  "default ignored when set",
			input: "worker_count: {{.ADAA_WORKERS | default \"4\"}}",
			env:   map[string]string{"ADAA_WORKERS": "8"},
			want:  "worker_count: 8",
		},
		{
			name:  "malformed template passes through",
			input: "value: {{.BROKEN",
			env:   map[string]string{},
			want:  "value: {{.BROKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			result := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.want, string(result))
		})
	}
}

func TestExpandEnvIntoQueryConfig(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")

	input := `
cache_ttl: 10m
llm:
  base_url: https://llm.example.com/v1
  api_key: {{.GROQ_API_KEY}}
  model: test-model
`
	var cfg QueryConfig
	require.NoError(t, yaml.Unmarshal(ExpandEnv([]byte(input)), &cfg))

	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
	assert.True(t, cfg.LLM.Enabled())
}

func TestExpandEnvWithEmptyInput(t *testing.T) {
	result := ExpandEnv([]byte(""))
	assert.Equal(t, "", string(result))
}
