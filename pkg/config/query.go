package config

import "time"

// QueryConfig controls the query agent.
type QueryConfig struct {
	// CacheTTL is how long an answer stays cached per (question, task).
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CacheSize bounds the number of cached answers.
	CacheSize int `yaml:"cache_size"`

	LLM LLMConfig `yaml:"llm"`
}

// LLMConfig configures the optional chat-completions model used for answers.
// The model is used only when both BaseURL and APIKey are set.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Enabled reports whether a model collaborator is configured.
func (c LLMConfig) Enabled() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

// DefaultQueryConfig returns the built-in query defaults.
func DefaultQueryConfig() *QueryConfig {
	return &QueryConfig{
		CacheTTL:  30 * time.Minute,
		CacheSize: 1000,
		LLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.7,
			MaxTokens:   500,
			Timeout:     30 * time.Second,
		},
	}
}
