package autofix

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"github.com/jywlabs/prdforge/internal/prd/prdtest"
	"github.com/jywlabs/prdforge/internal/score"
)

// TestProperty_ConvergeTerminates verifies the loop never applies more fixes
// than its budget and always reports why it stopped.
func TestProperty_ConvergeTerminates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		doc := prdtest.Document().Draw(rt, "doc")
		max := rapid.IntRange(0, 8).Draw(rt, "maxIterations")

		res, err := newEngine().Converge(context.Background(), doc, max)
		if err != nil {
			rt.Fatalf("Converge() error = %v", err)
		}
		if res.Iterations > max {
			rt.Fatalf("Iterations = %d exceeds budget %d", res.Iterations, max)
		}
		if len(res.FixesApplied) != res.Iterations {
			rt.Fatalf("FixesApplied = %d, Iterations = %d", len(res.FixesApplied), res.Iterations)
		}
		if res.Executable != res.Final.Executable {
			rt.Fatalf("Executable = %v, Final.Executable = %v", res.Executable, res.Final.Executable)
		}
		if res.Executable && (res.Exhausted || res.Stalled) {
			rt.Fatalf("executable result flagged exhausted=%v stalled=%v", res.Exhausted, res.Stalled)
		}
	})
}

// TestProperty_ConvergeIsIdempotent verifies a second run over a converged
// document applies nothing and reports the same score.
func TestProperty_ConvergeIsIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		doc := prdtest.Document().Draw(rt, "doc")
		e := newEngine()

		first, err := e.Converge(context.Background(), doc, 20)
		if err != nil {
			rt.Fatalf("Converge() error = %v", err)
		}
		if !first.Executable {
			return
		}

		second, err := e.Converge(context.Background(), doc, 20)
		if err != nil {
			rt.Fatalf("second Converge() error = %v", err)
		}
		if len(second.FixesApplied) != 0 {
			rt.Fatalf("second run applied %v", second.FixesApplied)
		}
		if second.Final.Score != first.Final.Score {
			rt.Fatalf("score changed %d -> %d", first.Final.Score, second.Final.Score)
		}
	})
}

// TestProperty_FixersAreIdempotent verifies each fixer clears its own
// precondition once applied.
func TestProperty_FixersAreIdempotent(t *testing.T) {
	scorer := score.New()
	rapid.Check(t, func(rt *rapid.T) {
		doc := prdtest.Document().Draw(rt, "doc")

		for _, f := range Catalog(DefaultTesting) {
			if !f.Applies(scorer.Validate(doc)) {
				continue
			}
			f.Apply(doc)
			if f.Applies(scorer.Validate(doc)) {
				rt.Fatalf("fixer %s still applies after running", f.Name)
			}
		}
	})
}

// TestProperty_NoPhasesNeverConverges verifies a document without phases is
// left untouched by the catalog's structural fixers.
func TestProperty_NoPhasesNeverConverges(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		doc := prdtest.Document().Draw(rt, "doc")
		doc.Phases = nil

		res, err := newEngine().Converge(context.Background(), doc, 20)
		if err != nil {
			rt.Fatalf("Converge() error = %v", err)
		}
		if res.Executable || !res.Final.HasError(score.IssueNoPhases) {
			rt.Fatalf("document without phases converged: %+v", res.Final)
		}
	})
}
