// Package query answers free-text questions about a completed analysis,
// through a language model when one is configured and deterministic
// per-intent templates otherwise.
package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/llm"
	"github.com/codeready-toolchain/adaa/pkg/metrics"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

// Name identifies the query agent.
const Name = "query_agent"

// Answer confidences
const (
	modelConfidence   = 0.85
	phraseConfidence  = 0.75
	keywordConfidence = 0.7
	helpConfidence    = 0.6
)

const fallbackNote = "The language model was unavailable, so this answer was generated from the analysis rules."

var (
	// ErrEmptyQuestion indicates a blank question.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrNoContext indicates a request without an analysis context.
	ErrNoContext = errors.New("analysis context is required")
)

// Model is the language-model collaborator. *llm.Client implements it.
type Model interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Request is one question about one task's analysis. Either Context or
// Load must be set; Load runs only when the answer is not cached.
type Request struct {
	TaskID   string
	Question string
	Context  *agent.AnalysisContext
	Load     func(ctx context.Context) (*agent.AnalysisContext, error)
}

// CacheStats reports answer cache usage since the agent was created.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// Agent answers questions. It is safe for concurrent use and is shared
// across requests.
type Agent struct {
	model   Model
	cache   *expirable.LRU[string, models.QueryAnswer]
	group   singleflight.Group
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a query agent. model may be nil, in which case every answer is
// rule-based.
func New(cfg *config.QueryConfig, model Model, m *metrics.Metrics) *Agent {
	if cfg == nil {
		cfg = config.DefaultQueryConfig()
	}
	timeout := cfg.LLM.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Agent{
		model:   model,
		cache:   expirable.NewLRU[string, models.QueryAnswer](cfg.CacheSize, nil, cfg.CacheTTL),
		timeout: timeout,
		metrics: m,
		logger:  slog.Default().With("component", "query"),
		now:     time.Now,
	}
}

// Name returns the agent name.
func (a *Agent) Name() string { return Name }

// Description returns a human-readable description.
func (a *Agent) Description() string { return "question answering over analysis results" }

// Ask answers req.Question. A cached answer for the same question text and
// task is returned unchanged without classifying the question again.
// Model failures never surface as errors; the answer falls back to rules.
//
// Concurrent misses for the same key share one answer, computed detached
// from ctx and bounded by the model timeout. A caller whose ctx ends first
// gets ctx.Err().
func (a *Agent) Ask(ctx context.Context, req Request) (*models.QueryAnswer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}
	if req.Context == nil && req.Load == nil {
		return nil, ErrNoContext
	}

	key := cacheKey(req.TaskID, req.Question)
	if cached, ok := a.cache.Get(key); ok {
		a.hits.Add(1)
		a.metrics.IncCache(true)
		return &cached, nil
	}
	a.misses.Add(1)
	a.metrics.IncCache(false)

	ch := a.group.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if req.Context == nil {
			actx, err := req.Load(flightCtx)
			if err != nil {
				return nil, err
			}
			req.Context = actx
		}
		ans := a.answer(flightCtx, req)
		// Answers produced past the deadline are not cached.
		if flightCtx.Err() == nil {
			a.cache.Add(key, ans)
		}
		return ans, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		ans := r.Val.(models.QueryAnswer)
		return &ans, nil
	}
}

// Stats returns cache hit and miss counts.
func (a *Agent) Stats() CacheStats {
	return CacheStats{Hits: a.hits.Load(), Misses: a.misses.Load(), Size: a.cache.Len()}
}

// Purge drops every cached answer for a task, e.g. after a stage re-run.
func (a *Agent) Purge(taskID string) {
	prefix := taskID + "\x00"
	for _, k := range a.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			a.cache.Remove(k)
		}
	}
}

func cacheKey(taskID, question string) string {
	return taskID + "\x00" + question
}

func (a *Agent) answer(ctx context.Context, req Request) models.QueryAnswer {
	normalized := Normalize(req.Question)
	cls := Classify(normalized)
	log := a.logger.With("task_id", req.TaskID, "intent", cls.Intent)

	var note string
	if a.model != nil {
		text, err := a.model.Complete(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt(req.Context)},
			{Role: llm.RoleUser, Content: strings.TrimSpace(req.Question)},
		})
		if err == nil {
			a.metrics.IncAnswer(models.SourceModel, string(cls.Intent))
			return models.QueryAnswer{
				Answer:     text,
				Confidence: modelConfidence,
				Source:     models.SourceModel,
				Intent:     string(cls.Intent),
				Timestamp:  a.now().UTC(),
			}
		}
		log.Warn("Model answer failed, falling back to rules", "error", err)
		note = fallbackNote
	}

	ans := RuleAnswer(normalized, cls, req.Context)
	ans.Timestamp = a.now().UTC()
	ans.Note = note
	a.metrics.IncAnswer(ans.Source, ans.Intent)
	log.Debug("Answered with rules", "confidence", ans.Confidence)
	return ans
}

// RuleAnswer renders the deterministic answer for a classified question.
// The timestamp is left zero.
func RuleAnswer(normalized string, cls Classification, actx *agent.AnalysisContext) models.QueryAnswer {
	if actx == nil {
		actx = &agent.AnalysisContext{}
	}
	f := factsOf(actx)
	a := answerer{actx: actx, facts: f, entities: ExtractEntities(normalized, f.columns)}

	confidence := keywordConfidence
	switch {
	case cls.Intent == IntentHelp || cls.Intent == IntentOther:
		confidence = helpConfidence
	case cls.PhraseMatch:
		confidence = phraseConfidence
	}
	return models.QueryAnswer{
		Answer:     a.answer(cls.Intent),
		Confidence: confidence,
		Source:     models.SourceRuleBased,
		Intent:     string(cls.Intent),
	}
}
