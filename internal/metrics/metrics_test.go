package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.FixApplied("missing-task-title")
	m.FixApplied("missing-task-title")
	m.FixApplied("id-pattern")
	m.Converged(OutcomeExecutable)
	m.GenerationFailed("schema")
	m.Answered(SourceAuto, 3)
	m.Answered(SourcePrompted, 0)
	m.Validated()

	if got := testutil.ToFloat64(m.fixesApplied.WithLabelValues("missing-task-title")); got != 2 {
		t.Errorf("fixes[missing-task-title] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.convergence.WithLabelValues(OutcomeExecutable)); got != 1 {
		t.Errorf("convergence[executable] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.answers.WithLabelValues(SourceAuto)); got != 3 {
		t.Errorf("answers[auto] = %v, want 3", got)
	}
	if got := testutil.CollectAndCount(m.answers); got != 1 {
		t.Errorf("answer series = %d, want 1 (zero counts are not recorded)", got)
	}
	if got := testutil.ToFloat64(m.validations); got != 1 {
		t.Errorf("validations = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.FixApplied("x")
	m.Converged(OutcomeStalled)
	m.GenerationFailed("test")
	m.Answered(SourceReused, 1)
	m.Validated()
	if m.Registry() != nil {
		t.Error("Registry() on nil metrics should be nil")
	}
	if err := m.WriteFile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Errorf("WriteFile() on nil metrics error = %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	m := New()
	m.Converged(OutcomeStalled)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `prdforge_autofix_convergence_total{outcome="stalled"} 1`) {
		t.Errorf("metrics file missing convergence counter:\n%s", data)
	}
}
