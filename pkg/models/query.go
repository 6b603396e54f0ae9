package models

import "time"

// Answer sources
const (
	SourceModel     = "model"
	SourceRuleBased = "rule-based"
)

// QueryAnswer is the query agent's reply to one question.
type QueryAnswer struct {
	Answer     string    `json:"answer"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	Intent     string    `json:"intent"`
	Timestamp  time.Time `json:"timestamp"`
	Note       string    `json:"note,omitempty"`
}
