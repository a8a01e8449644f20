// Package autofix drives a document to executability with deterministic
// repairs.
package autofix

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/metrics"
	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/score"
)

// DefaultMaxIterations bounds the fix loop.
const DefaultMaxIterations = 5

// Validator evaluates a document against the rubric.
type Validator interface {
	Validate(doc *prd.Document, proposed ...enhance.Enhancement) score.Result
}

// Persister writes the document after each applied fix.
type Persister interface {
	Persist(ctx context.Context, doc *prd.Document) error
}

// PersistFunc adapts a function to Persister.
type PersistFunc func(ctx context.Context, doc *prd.Document) error

// Persist calls f.
func (f PersistFunc) Persist(ctx context.Context, doc *prd.Document) error { return f(ctx, doc) }

// Result describes a convergence run.
type Result struct {
	Executable   bool
	FixesApplied []string
	Final        score.Result
	// Iterations counts loop bodies that applied a fix.
	Iterations int
	// Exhausted is set when the budget ran out before the document was executable.
	Exhausted bool
	// Stalled is set when a fix left the issue set unchanged.
	Stalled bool
}

// Outcome names how the run ended, for logs and metrics.
func (r Result) Outcome() string {
	switch {
	case r.Executable:
		return metrics.OutcomeExecutable
	case r.Stalled:
		return metrics.OutcomeStalled
	case r.Exhausted:
		return metrics.OutcomeExhausted
	default:
		return metrics.OutcomeNoFixer
	}
}

// Engine runs the fix catalog against a validator.
type Engine struct {
	Validator Validator
	Catalog   []Fixer
	Persister Persister        // optional
	Logger    *slog.Logger     // optional
	Metrics   *metrics.Metrics // optional
}

// New creates an engine with the default catalog.
func New(v Validator, testing enhance.TestingDefaults) *Engine {
	return &Engine{Validator: v, Catalog: Catalog(testing)}
}

// Converge validates doc and applies the first matching fixer until the
// document is executable, no fixer matches, a fix stalls, or maxIterations
// fixes have been applied. doc is mutated in place. The returned error is
// non-nil only for cancellation or a persistence failure; the partial result
// is returned alongside it.
func (e *Engine) Converge(ctx context.Context, doc *prd.Document, maxIterations int) (Result, error) {
	if maxIterations < 0 {
		maxIterations = 0
	}

	var res Result
	current := e.validate(doc)

	for {
		if current.Executable {
			break
		}
		if res.Iterations >= maxIterations {
			res.Exhausted = true
			break
		}
		if err := ctx.Err(); err != nil {
			res.Final = current
			return res, err
		}

		fixer := e.match(current)
		if fixer == nil {
			e.log("no fixer matches", "errors", len(current.Errors))
			break
		}

		desc := fixer.Apply(doc)
		res.Iterations++
		res.FixesApplied = append(res.FixesApplied, fmt.Sprintf("%s: %s", fixer.Name, desc))
		e.Metrics.FixApplied(fixer.Name)
		e.log("applied fix", "fixer", fixer.Name, "change", desc, "iteration", res.Iterations)

		if e.Persister != nil {
			if err := e.Persister.Persist(ctx, doc); err != nil {
				res.Final = current
				return res, fmt.Errorf("failed to persist fix %s: %w", fixer.Name, err)
			}
		}

		next := e.validate(doc)
		if score.SameIssues(current, next) {
			res.Stalled = true
			current = next
			e.log("fix did not change the issue set", "fixer", fixer.Name)
			break
		}
		current = next
	}

	res.Final = current
	res.Executable = current.Executable
	e.Metrics.Converged(res.Outcome())
	return res, nil
}

func (e *Engine) validate(doc *prd.Document) score.Result {
	return e.Validator.Validate(doc)
}

func (e *Engine) match(r score.Result) *Fixer {
	for i := range e.Catalog {
		if e.Catalog[i].Applies(r) {
			return &e.Catalog[i]
		}
	}
	return nil
}

func (e *Engine) log(msg string, args ...any) {
	if e.Logger != nil {
		e.Logger.Debug(msg, args...)
	}
}
