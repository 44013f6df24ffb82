// Package metrics counts what fill sessions do, in Prometheus form. Each
// Metrics owns its registry so runs and tests never share counters; the
// CLI exports them to a node_exporter textfile at exit.
package metrics

import (
	"fmt"
	"time"

	"github.com/entrhq/autofill/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autofill"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessions        *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	pages           prometheus.Counter
	fields          *prometheus.CounterVec
	confidence      *prometheus.HistogramVec
	confirmations   *prometheus.CounterVec
	learned         *prometheus.CounterVec
	errors          prometheus.Counter
}

// New creates collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: status (completed, abandoned, timed_out)
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "finished_total",
			Help:      "Fill sessions by terminal status",
		}, []string{"status"}),

		sessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Wall time from trigger to terminal state",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),

		pages: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "pages_scanned_total",
			Help:      "Page scans, rescans included",
		}),

		// Labels: outcome (filled, flagged, deferred, failed, skipped)
		fields: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fields",
			Name:      "total",
			Help:      "Fields by outcome",
		}, []string{"outcome"}),

		// Labels: source (profile, learned, none)
		confidence: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "confidence",
			Help:      "Distribution of match confidence",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1.0},
		}, []string{"source"}),

		// Labels: result (requested, answered, timeout)
		confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "confirmations",
			Name:      "total",
			Help:      "Operator confirmation requests and their results",
		}, []string{"result"}),

		// Labels: provenance (auto, confirmed)
		learned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "mappings_total",
			Help:      "Learned mappings written",
		}, []string{"provenance"}),

		errors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Non-fatal errors surfaced during sessions",
		}),
	}
}

// Registry exposes the registry, for exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Observe records one pipeline event. It has the types.EventEmitter shape
// so it can sit in an emitter chain.
func (m *Metrics) Observe(e *types.FillEvent) {
	if m == nil || e == nil {
		return
	}
	switch e.Type {
	case types.EventTypePageScanned:
		m.pages.Inc()
	case types.EventTypeFieldFilled:
		m.field("filled", e.Match)
	case types.EventTypeFieldFlagged:
		m.field("flagged", e.Match)
	case types.EventTypeFieldDeferred:
		m.field("deferred", e.Match)
	case types.EventTypeFieldFailed:
		m.field("failed", e.Match)
	case types.EventTypeFieldSkipped:
		m.fields.WithLabelValues("skipped").Inc()
	case types.EventTypeConfirmationRequest:
		m.confirmations.WithLabelValues("requested").Inc()
	case types.EventTypeConfirmationReceived:
		m.confirmations.WithLabelValues("answered").Inc()
	case types.EventTypeConfirmationTimeout:
		m.confirmations.WithLabelValues("timeout").Inc()
	case types.EventTypeMappingLearned:
		if e.Mapping != nil {
			m.learned.WithLabelValues(string(e.Mapping.Provenance)).Inc()
		}
	case types.EventTypeError:
		m.errors.Inc()
	}
}

func (m *Metrics) field(outcome string, match *types.MatchResult) {
	m.fields.WithLabelValues(outcome).Inc()
	if match != nil {
		m.confidence.WithLabelValues(string(match.Source)).Observe(match.Confidence)
	}
}

// RecordSession records a finished session.
func (m *Metrics) RecordSession(status types.SessionStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(string(status)).Inc()
	m.sessionDuration.Observe(d.Seconds())
}

// WriteTextfile writes every metric to path in the text exposition
// format, replacing the file atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
