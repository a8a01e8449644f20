// Package refine drives a document through the schema, test and feature
// enhancement phases and converges it to an executable state.
package refine

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/jywlabs/prdforge/internal/autofix"
	"github.com/jywlabs/prdforge/internal/conversation"
	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/gate"
	"github.com/jywlabs/prdforge/internal/insights"
	"github.com/jywlabs/prdforge/internal/metrics"
	"github.com/jywlabs/prdforge/internal/patterns"
	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/prompter"
	"github.com/jywlabs/prdforge/internal/qa"
	"github.com/jywlabs/prdforge/internal/score"
)

// ErrGeneration wraps failures of the enhancer. A phase that fails with it
// leaves the document unchanged and the run continues.
var ErrGeneration = errors.New("generation failed")

// Enhancer produces questions and content for a phase.
type Enhancer interface {
	Questions(ctx context.Context, req enhance.Request) ([]qa.Question, error)
	Generate(ctx context.Context, req enhance.Request) (enhance.Enhancement, error)
	Regenerate(ctx context.Context, req enhance.Request, current enhance.Enhancement, items []enhance.Item) (enhance.Enhancement, error)
}

// Observer is notified of progress. All methods are optional no-ops when
// the orchestrator has no observer.
type Observer interface {
	Insights(lines []string)
	PhaseStarted(kind enhance.Kind, index, total int)
	Generating(kind enhance.Kind)
	FixApplied(desc string)
	PhaseFinished(kind enhance.Kind, ok bool, note string, res *score.Result)
}

// Options control a single Refine call.
type Options struct {
	// MaxIterations is the shared budget for refinement rounds and for
	// each auto-fix run.
	MaxIterations int
	// AutoApprove answers low-confidence questions with inferred values and
	// accepts every phase. Without FullHooks it selects the streamlined path.
	AutoApprove bool
	// FullHooks keeps the question hooks when AutoApprove is set.
	FullHooks bool
	// Phases restricts the phases to run; they always run in canonical order.
	Phases []enhance.Kind
	// GapDriven runs only the phases whose gap is present in the document.
	GapDriven bool
	// ConversationID resumes an existing conversation.
	ConversationID string
	// Mode is recorded on a new conversation.
	Mode conversation.Mode
}

func (o Options) normalized() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = autofix.DefaultMaxIterations
	}
	if o.Mode == "" {
		o.Mode = conversation.ModeEnhance
	}
	requested := o.Phases
	if len(requested) == 0 {
		requested = enhance.Kinds
	}
	var phases []enhance.Kind
	for _, k := range enhance.Kinds {
		if slices.Contains(requested, k) {
			phases = append(phases, k)
		}
	}
	o.Phases = phases
	return o
}

func (o Options) streamlined() bool { return o.AutoApprove && !o.FullHooks }

// Context is what the caller knows about the environment of the document.
type Context struct {
	Insights *insights.Insights
	// Values is stored as the initial context of a new conversation.
	Values map[string]string
}

// Orchestrator runs refinement. Enhancer is required; every other
// collaborator is optional.
type Orchestrator struct {
	Enhancer  Enhancer
	Validator autofix.Validator
	Prompter  prompter.Prompter
	Store     conversation.Store
	Patterns  *patterns.Cache
	Gate      gate.Config
	Testing   enhance.TestingDefaults
	Persister autofix.Persister
	Observer  Observer
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	// RecentItems is how many conversation items are passed verbatim to the
	// enhancer; older ones are summarized.
	RecentItems int
	Now         func() time.Time
}

// New creates an orchestrator with the default scorer and gate settings.
func New(enh Enhancer, p prompter.Prompter) *Orchestrator {
	return &Orchestrator{
		Enhancer:    enh,
		Prompter:    p,
		Validator:   score.New(),
		Gate:        gate.DefaultConfig(),
		Testing:     autofix.DefaultTesting,
		RecentItems: 5,
		Now:         time.Now,
	}
}

// Refine enhances a copy of doc and converges it. The returned result is
// always non-nil. The error is non-nil only when the user or ctx cancelled
// the run; the partial result and a paused conversation remain.
func (o *Orchestrator) Refine(ctx context.Context, doc *prd.Document, rctx Context, opts Options) (*Result, error) {
	r := o.newRun(doc, rctx, opts.normalized())
	err := r.execute(ctx)
	r.finish(ctx, err)
	return r.res, err
}

// countingValidator counts validations for the result and metrics.
type countingValidator struct {
	inner   autofix.Validator
	metrics *metrics.Metrics
	n       int
}

func (c *countingValidator) Validate(doc *prd.Document, proposed ...enhance.Enhancement) score.Result {
	c.n++
	c.metrics.Validated()
	return c.inner.Validate(doc, proposed...)
}

type nopObserver struct{}

func (nopObserver) Insights([]string)                                       {}
func (nopObserver) PhaseStarted(enhance.Kind, int, int)                     {}
func (nopObserver) Generating(enhance.Kind)                                 {}
func (nopObserver) FixApplied(string)                                       {}
func (nopObserver) PhaseFinished(enhance.Kind, bool, string, *score.Result) {}
