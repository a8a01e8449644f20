// Package metrics counts refinement and convergence outcomes.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "prdforge"

// Metrics holds the counters for one process.
type Metrics struct {
	registry *prometheus.Registry

	fixesApplied       *prometheus.CounterVec
	convergence        *prometheus.CounterVec
	generationFailures *prometheus.CounterVec
	answers            *prometheus.CounterVec
	validations        prometheus.Counter
}

// New creates the counters and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fixesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autofix_fixes_applied_total",
			Help:      "Auto-fixes applied, by fixer.",
		}, []string{"fixer"}),
		convergence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autofix_convergence_total",
			Help:      "Auto-fix runs, by outcome.",
		}, []string{"outcome"}),
		generationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refine_generation_failures_total",
			Help:      "Failed enhancement generations, by phase.",
		}, []string{"phase"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_answers_total",
			Help:      "Answers collected, by source.",
		}, []string{"source"}),
		validations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_validations_total",
			Help:      "Rubric validations performed.",
		}),
	}
	m.registry.MustRegister(m.fixesApplied, m.convergence, m.generationFailures, m.answers, m.validations)
	return m
}

// Convergence outcomes.
const (
	OutcomeExecutable = "executable"
	OutcomeNoFixer    = "no_fixer"
	OutcomeStalled    = "stalled"
	OutcomeExhausted  = "exhausted"
)

// Answer sources.
const (
	SourceAuto     = "auto"
	SourcePrompted = "prompted"
	SourceReused   = "reused"
)

// Registry returns the registry holding the counters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FixApplied counts one applied fix.
func (m *Metrics) FixApplied(fixer string) {
	if m == nil {
		return
	}
	m.fixesApplied.WithLabelValues(fixer).Inc()
}

// Converged counts one auto-fix run ending with outcome.
func (m *Metrics) Converged(outcome string) {
	if m == nil {
		return
	}
	m.convergence.WithLabelValues(outcome).Inc()
}

// GenerationFailed counts a failed generation in phase.
func (m *Metrics) GenerationFailed(phase string) {
	if m == nil {
		return
	}
	m.generationFailures.WithLabelValues(phase).Inc()
}

// Answered counts n answers from source.
func (m *Metrics) Answered(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.answers.WithLabelValues(source).Add(float64(n))
}

// Validated counts one rubric validation.
func (m *Metrics) Validated() {
	if m == nil {
		return
	}
	m.validations.Inc()
}

// WriteFile writes the counters in the Prometheus text format.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
