package config

import (
	"fmt"
	"strings"
)

// ConfigValidator validates configuration with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateAnalysis(); err != nil {
		return fmt.Errorf("analysis validation failed: %w", err)
	}

	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}

	if err := v.validateQuery(); err != nil {
		return fmt.Errorf("query validation failed: %w", err)
	}

	if err := v.validateStream(); err != nil {
		return fmt.Errorf("stream validation failed: %w", err)
	}

	if err := v.validateStorage(); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}

	if err := v.validateSystem(); err != nil {
		return fmt.Errorf("system validation failed: %w", err)
	}

	return nil
}

func inUnitInterval(x float64) bool {
	return x >= 0 && x <= 1
}

func (v *ConfigValidator) validateAnalysis() error {
	a := v.cfg.Analysis
	if a == nil {
		return NewValidationError("analysis", "", ErrMissingRequiredField)
	}

	p := a.Profiler
	if p.SampleSize < 1 {
		return NewValidationError("analysis.profiler", "sample_size", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if !inUnitInterval(p.TypeMatchRatio) || p.TypeMatchRatio == 0 {
		return NewValidationError("analysis.profiler", "type_match_ratio", fmt.Errorf("%w: must be in (0, 1]", ErrInvalidValue))
	}
	if !(p.LowSeverityMax > 0 && p.LowSeverityMax < p.MediumSeverityMax && p.MediumSeverityMax < 1) {
		return NewValidationError("analysis.profiler", "medium_severity_max",
			fmt.Errorf("%w: need 0 < low_severity_max < medium_severity_max < 1", ErrInvalidValue))
	}
	if p.IQRMultiplier <= 0 {
		return NewValidationError("analysis.profiler", "iqr_multiplier", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if p.MinOutlierPoints < 4 {
		return NewValidationError("analysis.profiler", "min_outlier_points", fmt.Errorf("%w: must be at least 4", ErrInvalidValue))
	}
	w := p.Weights
	if w.Missing < 0 || w.Outlier < 0 || w.TypeInconsistency < 0 {
		return NewValidationError("analysis.profiler", "weights", fmt.Errorf("%w: weights must not be negative", ErrInvalidValue))
	}
	if w.Missing+w.Outlier+w.TypeInconsistency > 1 {
		return NewValidationError("analysis.profiler", "weights", fmt.Errorf("%w: weights must sum to at most 1", ErrInvalidValue))
	}

	in := a.Insight
	for field, val := range map[string]float64{
		"correlation_threshold": in.CorrelationThreshold,
		"trend_min_r_squared":   in.TrendMinRSquared,
		"dominant_share":        in.DominantShare,
		"concentration_ratio":   in.ConcentrationRatio,
		"pattern_confidence":    in.PatternConfidence,
		"high_confidence":       in.HighConfidence,
	} {
		if !inUnitInterval(val) {
			return NewValidationError("analysis.insight", field, fmt.Errorf("%w: must be in [0, 1]", ErrInvalidValue))
		}
	}
	if in.ZScoreThreshold <= 0 {
		return NewValidationError("analysis.insight", "z_score_threshold", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}

	if a.Visualization.HistogramBins < 1 {
		return NewValidationError("analysis.visualization", "histogram_bins", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}

	r := a.Recommendation
	if !(r.CriticalQuality <= r.HighQuality && inUnitInterval(r.CriticalQuality) && inUnitInterval(r.HighQuality)) {
		return NewValidationError("analysis.recommendation", "high_quality",
			fmt.Errorf("%w: need 0 <= critical_quality <= high_quality <= 1", ErrInvalidValue))
	}

	return nil
}

func (v *ConfigValidator) validateQueue() error {
	q := v.cfg.Queue
	if q == nil {
		return NewValidationError("queue", "", ErrMissingRequiredField)
	}
	if q.WorkerCount < 1 || q.WorkerCount > 50 {
		return NewValidationError("queue", "worker_count", fmt.Errorf("%w: must be between 1 and 50", ErrInvalidValue))
	}
	if q.PollInterval <= 0 {
		return NewValidationError("queue", "poll_interval", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if q.PollIntervalJitter < 0 || q.PollIntervalJitter >= q.PollInterval {
		return NewValidationError("queue", "poll_interval_jitter", fmt.Errorf("%w: must be non-negative and below poll_interval", ErrInvalidValue))
	}
	if q.JobTimeout <= 0 {
		return NewValidationError("queue", "job_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateQuery() error {
	q := v.cfg.Query
	if q == nil {
		return NewValidationError("query", "", ErrMissingRequiredField)
	}
	if q.CacheTTL <= 0 {
		return NewValidationError("query", "cache_ttl", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if q.CacheSize < 1 {
		return NewValidationError("query", "cache_size", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if q.LLM.Enabled() && q.LLM.Model == "" {
		return NewValidationError("query.llm", "model", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateStream() error {
	s := v.cfg.Stream
	if s == nil {
		return NewValidationError("stream", "", ErrMissingRequiredField)
	}
	if s.EventQueueSize < 1 {
		return NewValidationError("stream", "event_queue_size", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if s.SubscriberBuffer < 1 {
		return NewValidationError("stream", "subscriber_buffer", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if s.ReconnectBackoff <= 0 {
		return NewValidationError("stream", "reconnect_backoff", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateStorage() error {
	s := v.cfg.Storage
	if s == nil {
		return NewValidationError("storage", "", ErrMissingRequiredField)
	}
	switch s.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if strings.TrimSpace(s.SQLitePath) == "" {
			return NewValidationError("storage", "sqlite_path", ErrMissingRequiredField)
		}
	default:
		return NewValidationError("storage", "driver", fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidValue, s.Driver, DriverPostgres, DriverSQLite))
	}
	if s.BlobDir == "" {
		return NewValidationError("storage", "blob_dir", ErrMissingRequiredField)
	}
	if s.MaxResultBytes <= 0 {
		return NewValidationError("storage", "max_result_bytes", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateSystem() error {
	if v.cfg.Auth != nil && v.cfg.Auth.JWTSecret != "" && len(v.cfg.Auth.JWTSecret) < 16 {
		return NewValidationError("auth", "jwt_secret", fmt.Errorf("%w: must be at least 16 bytes", ErrInvalidValue))
	}
	if v.cfg.Slack != nil && v.cfg.Slack.Enabled {
		if v.cfg.Slack.Token == "" {
			return NewValidationError("slack", "token", ErrMissingRequiredField)
		}
		if v.cfg.Slack.Channel == "" {
			return NewValidationError("slack", "channel", ErrMissingRequiredField)
		}
	}
	if v.cfg.Log != nil {
		switch v.cfg.Log.Format {
		case "", "text", "json":
		default:
			return NewValidationError("log", "format", fmt.Errorf("%w: %q", ErrInvalidValue, v.cfg.Log.Format))
		}
	}
	return nil
}
