package refine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jywlabs/prdforge/internal/autofix"
	"github.com/jywlabs/prdforge/internal/conversation"
	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/logging"
	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/prompter"
	"github.com/jywlabs/prdforge/internal/qa"
	"github.com/jywlabs/prdforge/internal/score"
)

// run holds the state of one Refine call.
type run struct {
	o         *Orchestrator
	opts      Options
	rctx      Context
	res       *Result
	work      *prd.Document
	validator *countingValidator
	fixer     *autofix.Engine
	observer  Observer
	logger    *slog.Logger
	store     conversation.Store
	convID    string
	// prior answers from a resumed conversation, by question id and text.
	prior     map[string]qa.Answer
	priorText map[string]qa.Answer
	// answers given in this run and reused ones, by question text.
	answers   map[string]qa.Value
	budgetHit bool
	converged bool
}

func (o *Orchestrator) newRun(doc *prd.Document, rctx Context, opts Options) *run {
	v := &countingValidator{inner: o.Validator, metrics: o.Metrics}
	if v.inner == nil {
		v.inner = score.New()
	}

	fixer := autofix.New(v, o.Testing)
	fixer.Persister = o.Persister
	fixer.Logger = o.Logger
	fixer.Metrics = o.Metrics

	observer := o.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	logger := logging.OrDiscard(o.Logger)

	work := doc.Clone()
	return &run{
		o:         o,
		opts:      opts,
		rctx:      rctx,
		res:       &Result{Document: work},
		work:      work,
		validator: v,
		fixer:     fixer,
		observer:  observer,
		logger:    logger,
		store:     o.Store,
		prior:     make(map[string]qa.Answer),
		priorText: make(map[string]qa.Answer),
		answers:   make(map[string]qa.Value),
	}
}

func (r *run) execute(ctx context.Context) error {
	if err := r.openConversation(ctx); err != nil {
		return err
	}

	phases := r.opts.Phases
	if r.opts.GapDriven {
		phases = r.gapPhases()
	}
	r.logger.Info("refinement started",
		"document", r.work.ID,
		"phases", phases,
		"streamlined", r.opts.streamlined(),
		"max_iterations", r.opts.MaxIterations,
		"conversation", r.convID,
	)

	r.res.Iterations = 1
	if r.opts.streamlined() {
		return r.streamlinedPath(ctx, phases)
	}
	for i, kind := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runPhase(ctx, kind, i+1, len(phases)); err != nil {
			return err
		}
		r.updateIteration(ctx)
	}
	if !r.converged {
		return r.converge(ctx)
	}
	return nil
}

// streamlinedPath generates once per phase and validates once at the end.
func (r *run) streamlinedPath(ctx context.Context, phases []enhance.Kind) error {
	r.setState(ctx, conversation.StateRefining)
	for i, kind := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.observer.PhaseStarted(kind, i+1, len(phases))
		pr := PhaseResult{Kind: kind}

		enh, err := r.generate(ctx, kind, "")
		switch {
		case err != nil && r.cancelled(ctx, err):
			return err
		case err != nil:
			r.phaseFailed(&pr, err)
		default:
			if err := enhance.Apply(r.work, enh, r.o.Testing); err != nil {
				r.phaseFailed(&pr, err)
				break
			}
			r.phaseApplied(&pr, enh)
		}
		r.res.Phases = append(r.res.Phases, pr)
		r.observer.PhaseFinished(kind, pr.Status != PhaseFailed, pr.Error, nil)
	}
	return r.converge(ctx)
}

// gapPhases validates the document and keeps the requested phases whose
// gap is present.
func (r *run) gapPhases() []enhance.Kind {
	res := r.validator.Validate(r.work)
	needed := score.GapPhases(score.Gaps(r.work, res))
	var out []enhance.Kind
	for _, k := range r.opts.Phases {
		for _, n := range needed {
			if k == n {
				out = append(out, k)
			}
		}
	}
	return out
}

// converge runs the auto-fix engine on the working document.
func (r *run) converge(ctx context.Context) error {
	fr, err := r.fixer.Converge(ctx, r.work, r.opts.MaxIterations)
	r.converged = true
	for _, f := range fr.FixesApplied {
		r.observer.FixApplied(f)
	}
	r.res.FixesApplied = append(r.res.FixesApplied, fr.FixesApplied...)
	r.res.Score = fr.Final
	r.res.Executable = fr.Executable
	r.res.Stalled = fr.Stalled
	r.res.fixExhausted = fr.Exhausted
	if err != nil {
		if r.cancelled(ctx, err) {
			return err
		}
		r.note("auto-fix: %v", err)
	}
	return nil
}

func (r *run) generate(ctx context.Context, kind enhance.Kind, feedback string) (enhance.Enhancement, error) {
	r.observer.Generating(kind)
	req := r.request(ctx, kind)
	req.Feedback = feedback
	enh, err := r.o.Enhancer.Generate(ctx, req)
	if err != nil {
		return enhance.Enhancement{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return enh, nil
}

func (r *run) regenerate(ctx context.Context, kind enhance.Kind, current enhance.Enhancement, items []enhance.Item, feedback string) (enhance.Enhancement, error) {
	r.observer.Generating(kind)
	req := r.request(ctx, kind)
	req.Feedback = feedback
	partial, err := r.o.Enhancer.Regenerate(ctx, req, current, items)
	if err != nil {
		return current, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	merged, err := current.Merge(partial)
	if err != nil {
		return current, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return merged, nil
}

func (r *run) request(ctx context.Context, kind enhance.Kind) enhance.Request {
	answers := make(map[string]qa.Value, len(r.answers))
	for k, v := range r.answers {
		answers[k] = v
	}
	return enhance.Request{
		Kind:     kind,
		Document: r.work,
		Context:  r.contextText(ctx),
		Answers:  answers,
	}
}

func (r *run) contextText(ctx context.Context) string {
	var parts []string
	if p := r.rctx.Insights.Prompt(); p != "" {
		parts = append(parts, p)
	}
	if r.store != nil && r.convID != "" {
		sum, err := r.store.Summarize(ctx, r.convID, r.o.RecentItems)
		if err == nil && sum.Digest != "" {
			parts = append(parts, "## Earlier Answers\n\n"+sum.Digest)
		}
	}
	return strings.Join(parts, "\n\n")
}

// spend consumes one refinement round from the shared budget.
func (r *run) spend() bool {
	if r.res.Iterations >= r.opts.MaxIterations {
		r.budgetHit = true
		return false
	}
	r.res.Iterations++
	return true
}

// cancelled reports whether err ends the run rather than the phase.
func (r *run) cancelled(ctx context.Context, err error) bool {
	return errors.Is(err, prompter.ErrUserCancelled) || ctx.Err() != nil
}

func (r *run) phaseFailed(pr *PhaseResult, err error) {
	pr.Status = PhaseFailed
	pr.Error = err.Error()
	r.o.Metrics.GenerationFailed(string(pr.Kind))
	r.logger.Warn("phase failed", "phase", pr.Kind, "error", err)
	r.note("%s phase skipped: %v", pr.Kind, err)
}

func (r *run) phaseApplied(pr *PhaseResult, enh enhance.Enhancement) {
	pr.Status = PhaseApplied
	pr.Enhancement = enh
	if enh.Empty() {
		r.note("%s phase generated no content", pr.Kind)
	}
}

func (r *run) note(format string, args ...any) {
	r.res.Notes = append(r.res.Notes, fmt.Sprintf(format, args...))
}

func (r *run) now() time.Time {
	if r.o.Now != nil {
		return r.o.Now()
	}
	return time.Now()
}

// finish fills the result and records the final conversation state. State
// writes ignore cancellation so a paused session stays resumable.
func (r *run) finish(ctx context.Context, runErr error) {
	res := r.res
	res.Document = r.work
	res.ConversationID = r.convID
	res.Validations = r.validator.n
	res.Exhausted = res.fixExhausted || r.budgetHit
	res.Cancelled = runErr != nil

	bg := context.WithoutCancel(ctx)
	switch {
	case runErr != nil:
		r.setState(bg, conversation.StatePaused)
	case len(res.Phases) > 0 && res.failedPhases() == len(res.Phases):
		r.setState(bg, conversation.StateError)
	default:
		r.setState(bg, conversation.StateComplete)
	}
	r.updateIteration(bg)

	if runErr == nil {
		res.Gaps = score.Gaps(r.work, res.Score)
		if r.o.Persister != nil {
			if err := r.o.Persister.Persist(ctx, r.work); err != nil {
				r.note("write document: %v", err)
			}
		}
	}

	r.logger.Info("refinement finished",
		"document", r.work.ID,
		"executable", res.Executable,
		"score", res.Score.Score,
		"iterations", res.Iterations,
		"validations", res.Validations,
		"fixes", len(res.FixesApplied),
		"cancelled", res.Cancelled,
	)
}
