// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adaa"

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	analyses      *prometheus.CounterVec
	jobsActive    prometheus.Gauge
	bridgeEvents  *prometheus.CounterVec
	queryCache    *prometheus.CounterVec
	queryAnswers  *prometheus.CounterVec
	activeStreams *prometheus.GaugeVec
	notifications *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the collectors registered with the global registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew creates and registers the collectors with reg. Collectors that are
// already registered are reused; any other registration error panics.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each analysis stage by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage", "status"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "analyses_total",
			Help:      "Finished analysis runs by final status.",
		}, []string{"status"}),
		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_active",
			Help:      "Analysis jobs currently executing.",
		}),
		bridgeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "bridge_events_total",
			Help:      "Activity events handled by the event bridge by outcome (published, dropped, failed).",
		}, []string{"outcome"}),
		queryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "cache_lookups_total",
			Help:      "Query answer cache lookups by result (hit, miss).",
		}, []string{"result"}),
		queryAnswers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "answers_total",
			Help:      "Query answers by source and intent.",
		}, []string{"source", "intent"}),
		activeStreams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "active_streams",
			Help:      "Open live event subscriptions by transport.",
		}, []string{"transport"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slack",
			Name:      "notifications_total",
			Help:      "Completion notifications by outcome.",
		}, []string{"outcome"}),
	}

	m.stageDuration = register(reg, m.stageDuration)
	m.analyses = register(reg, m.analyses)
	m.jobsActive = register(reg, m.jobsActive)
	m.bridgeEvents = register(reg, m.bridgeEvents)
	m.queryCache = register(reg, m.queryCache)
	m.queryAnswers = register(reg, m.queryAnswers)
	m.activeStreams = register(reg, m.activeStreams)
	m.notifications = register(reg, m.notifications)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveStage records the duration and outcome of one stage run.
func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// IncAnalysis counts a finished run.
func (m *Metrics) IncAnalysis(status string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(status).Inc()
}

// JobStarted and JobFinished track in-flight jobs.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsActive.Inc()
}

func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}
	m.jobsActive.Dec()
}

// Bridge event outcomes
const (
	BridgePublished = "published"
	BridgeDropped   = "dropped"
	BridgeFailed    = "failed"
)

// IncBridge counts one event bridge outcome.
func (m *Metrics) IncBridge(outcome string) {
	if m == nil {
		return
	}
	m.bridgeEvents.WithLabelValues(outcome).Inc()
}

// IncCache counts a query cache lookup.
func (m *Metrics) IncCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.queryCache.WithLabelValues(result).Inc()
}

// IncAnswer counts a computed query answer.
func (m *Metrics) IncAnswer(source, intent string) {
	if m == nil {
		return
	}
	m.queryAnswers.WithLabelValues(source, intent).Inc()
}

// StreamOpened and StreamClosed track live subscriptions per transport ("sse", "websocket").
func (m *Metrics) StreamOpened(transport string) {
	if m == nil {
		return
	}
	m.activeStreams.WithLabelValues(transport).Inc()
}

func (m *Metrics) StreamClosed(transport string) {
	if m == nil {
		return
	}
	m.activeStreams.WithLabelValues(transport).Dec()
}

// IncNotification counts a completion notification outcome ("sent", "failed").
func (m *Metrics) IncNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}
