package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/jywlabs/prdforge/internal/conversation"
	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/gate"
	"github.com/jywlabs/prdforge/internal/metrics"
	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/prompter"
	"github.com/jywlabs/prdforge/internal/qa"
	"github.com/jywlabs/prdforge/internal/score"
)

// Approval choices.
const (
	choiceApprove = "approve"
	choiceReject  = "reject"
	choiceEdit    = "edit"
)

// runPhase runs pre-phase, generation, mid-phase, post-phase and approval
// for one phase, then converges the accepted document.
func (r *run) runPhase(ctx context.Context, kind enhance.Kind, index, total int) error {
	r.observer.PhaseStarted(kind, index, total)
	pr := PhaseResult{Kind: kind}
	defer func() { r.res.Phases = append(r.res.Phases, pr) }()

	r.setState(ctx, conversation.StateQuestioning)
	if err := r.prePhase(ctx, kind, &pr); err != nil {
		return err
	}

	r.setState(ctx, conversation.StateRefining)
	enh, err := r.generate(ctx, kind, "")
	if err != nil {
		if r.cancelled(ctx, err) {
			return err
		}
		r.phaseFailed(&pr, err)
		r.observer.PhaseFinished(kind, false, pr.Error, nil)
		return nil
	}

	enh, err = r.midPhase(ctx, kind, enh, &pr)
	if err != nil {
		return err
	}

	cand, enh, err := r.postPhase(ctx, kind, enh, &pr)
	if err != nil {
		return err
	}

	cand, enh, approved, err := r.approve(ctx, kind, cand, enh, &pr)
	if err != nil {
		return err
	}
	if !approved {
		pr.Status = PhaseRejected
		pr.Enhancement = enh
		r.note("%s phase rejected", kind)
		r.observer.PhaseFinished(kind, false, "rejected", nil)
		return nil
	}

	r.work = cand
	r.phaseApplied(&pr, enh)
	if err := r.converge(ctx); err != nil {
		return err
	}
	pr.Score = r.res.Score
	r.observer.PhaseFinished(kind, true, "", &pr.Score)
	return nil
}

// prePhase surfaces insights and resolves the clarifying questions.
func (r *run) prePhase(ctx context.Context, kind enhance.Kind, pr *PhaseResult) error {
	r.observer.Insights(r.rctx.Insights.Lines())

	qs, err := r.o.Enhancer.Questions(ctx, r.request(ctx, kind))
	if err != nil {
		if r.cancelled(ctx, err) {
			return err
		}
		r.note("%s questions unavailable: %v", kind, err)
		return nil
	}
	return r.answerAll(ctx, qs, pr)
}

// answerAll reuses earlier answers, fills inferred answers from the pattern
// cache, auto-applies what the gate allows and asks for the rest.
func (r *run) answerAll(ctx context.Context, qs []qa.Question, pr *PhaseResult) error {
	var fresh []qa.Question
	for _, q := range qs {
		pr.Questions++
		if a, ok := r.priorAnswer(q); ok {
			if !a.Skipped {
				r.answers[q.Text] = a.Value
			}
			pr.Reused++
			continue
		}
		if r.o.Patterns != nil {
			q, _ = r.o.Patterns.Infer(q)
		}
		fresh = append(fresh, q)
	}

	g := gate.Partition(fresh, r.o.Gate, r.logger)
	for _, q := range g.AutoApplied {
		a := qa.Answer{QuestionID: q.ID, Value: g.Answers[q.ID], Timestamp: r.now()}
		if err := r.record(ctx, q, a); err != nil {
			return err
		}
		pr.AutoApplied++
	}

	for _, q := range g.NeedsPrompt {
		a, err := r.ask(ctx, q)
		if err != nil {
			return err
		}
		if err := r.record(ctx, q, a); err != nil {
			return err
		}
		if r.opts.AutoApprove {
			pr.AutoApplied++
			continue
		}
		pr.Prompted++
		if r.o.Patterns != nil {
			r.o.Patterns.Record(q, a)
		}
	}

	r.o.Metrics.Answered(metrics.SourceReused, pr.Reused)
	r.o.Metrics.Answered(metrics.SourceAuto, len(g.AutoApplied))
	if r.opts.AutoApprove {
		r.o.Metrics.Answered(metrics.SourceAuto, len(g.NeedsPrompt))
	} else {
		r.o.Metrics.Answered(metrics.SourcePrompted, len(g.NeedsPrompt))
	}
	return nil
}

// ask answers q with the inferred value under AutoApprove, or prompts.
func (r *run) ask(ctx context.Context, q qa.Question) (qa.Answer, error) {
	if err := ctx.Err(); err != nil {
		return qa.Answer{}, err
	}
	p := r.o.Prompter
	if r.opts.AutoApprove || p == nil {
		p = prompter.Auto{Now: r.now}
	}
	return p.Ask(ctx, q)
}

func (r *run) priorAnswer(q qa.Question) (qa.Answer, bool) {
	if a, ok := r.prior[q.ID]; ok {
		return a, true
	}
	a, ok := r.priorText[normalize(q.Text)]
	return a, ok
}

// midPhase asks follow-ups for incomplete or low-confidence items and
// regenerates just those items.
func (r *run) midPhase(ctx context.Context, kind enhance.Kind, enh enhance.Enhancement, pr *PhaseResult) (enhance.Enhancement, error) {
	items := enh.Incomplete()
	if len(items) == 0 || !r.spend() {
		return enh, nil
	}

	followUps := make([]qa.Question, len(items))
	for i, it := range items {
		followUps[i] = qa.Question{
			ID:       fmt.Sprintf("%s-followup-%s", kind, it.Key),
			Text:     fmt.Sprintf("%s. What should %s contain?", prd.Capitalize(it.Reason), it.Key),
			Type:     qa.TypeOpen,
			Category: string(kind),
		}
	}
	if err := r.answerAll(ctx, followUps, pr); err != nil {
		return enh, err
	}

	var feedback []string
	for i, q := range followUps {
		if v, ok := r.answers[q.Text]; ok {
			feedback = append(feedback, fmt.Sprintf("- %s: %s", items[i].Key, v.String()))
		}
	}

	merged, err := r.regenerate(ctx, kind, enh, items, strings.Join(feedback, "\n"))
	if err != nil {
		if r.cancelled(ctx, err) {
			return enh, err
		}
		r.note("%s follow-up refinement failed: %v", kind, err)
		return enh, nil
	}
	pr.Refinements++
	return merged, nil
}

// postPhase applies the enhancement to a candidate document and validates
// it. While phase issues remain it asks which items to refine and
// regenerates them, within the shared budget.
func (r *run) postPhase(ctx context.Context, kind enhance.Kind, enh enhance.Enhancement, pr *PhaseResult) (*prd.Document, enhance.Enhancement, error) {
	for {
		cand := r.work.Clone()
		if err := enhance.Apply(cand, enh, r.o.Testing); err != nil {
			r.note("%s: %v", kind, err)
			return r.work.Clone(), enh, nil
		}

		res := r.validator.Validate(cand, enh)
		pr.Score = res
		items := phaseItems(res, kind)
		if len(items) == 0 {
			return cand, enh, nil
		}

		selected, err := r.selectItems(ctx, kind, items)
		if err != nil {
			return cand, enh, err
		}
		if len(selected) == 0 || !r.spend() {
			return cand, enh, nil
		}

		merged, err := r.regenerate(ctx, kind, enh, selected, "")
		if err != nil {
			if r.cancelled(ctx, err) {
				return cand, enh, err
			}
			r.note("%s refinement failed: %v", kind, err)
			return cand, enh, nil
		}
		enh = merged
		pr.Refinements++
	}
}

// selectItems asks which items to refine; AutoApprove refines all of them.
func (r *run) selectItems(ctx context.Context, kind enhance.Kind, items []enhance.Item) ([]enhance.Item, error) {
	if r.opts.AutoApprove {
		return items, nil
	}

	q := qa.Question{
		ID:       fmt.Sprintf("%s-refine-%d", kind, r.res.Iterations),
		Text:     fmt.Sprintf("The %s output has %d open issue(s). Which items should be refined? (enter to keep as is)", kind, len(items)),
		Type:     qa.TypeMultiSelect,
		Category: string(kind),
	}
	for _, it := range items {
		q.Options = append(q.Options, it.Key)
	}
	a, err := r.ask(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := r.record(ctx, q, a); err != nil {
		return nil, err
	}
	if a.Skipped {
		return nil, nil
	}

	var selected []enhance.Item
	for _, it := range items {
		for _, key := range a.Value.List {
			if key == it.Key {
				selected = append(selected, it)
			}
		}
	}
	return selected, nil
}

// approve asks the user to accept the phase output. Edit regenerates the
// phase with the user's feedback and asks again.
func (r *run) approve(ctx context.Context, kind enhance.Kind, cand *prd.Document, enh enhance.Enhancement, pr *PhaseResult) (*prd.Document, enhance.Enhancement, bool, error) {
	if r.opts.AutoApprove {
		return cand, enh, true, nil
	}

	for round := 1; ; round++ {
		q := qa.Question{
			ID:       fmt.Sprintf("%s-approval-%d", kind, round),
			Text:     fmt.Sprintf("Accept the %s phase output (%s)?", kind, describe(enh)),
			Type:     qa.TypeSingleChoice,
			Options:  []string{choiceApprove, choiceReject, choiceEdit},
			Required: true,
			Category: string(kind),
		}
		a, err := r.ask(ctx, q)
		if err != nil {
			return cand, enh, false, err
		}
		if err := r.record(ctx, q, a); err != nil {
			return cand, enh, false, err
		}

		switch a.Value.String() {
		case choiceApprove:
			return cand, enh, true, nil
		case choiceReject:
			return cand, enh, false, nil
		case choiceEdit:
		default:
			continue
		}

		eq := qa.Question{
			ID:       fmt.Sprintf("%s-edit-%d", kind, round),
			Text:     fmt.Sprintf("What should change in the %s output?", kind),
			Type:     qa.TypeOpen,
			Required: true,
			Category: string(kind),
		}
		ea, err := r.ask(ctx, eq)
		if err != nil {
			return cand, enh, false, err
		}
		if err := r.record(ctx, eq, ea); err != nil {
			return cand, enh, false, err
		}
		if !r.spend() {
			r.note("%s edit not applied: iteration budget exhausted", kind)
			continue
		}

		next, err := r.generate(ctx, kind, ea.Value.String())
		if err != nil {
			if r.cancelled(ctx, err) {
				return cand, enh, false, err
			}
			r.note("%s edit failed: %v", kind, err)
			continue
		}
		edited := r.work.Clone()
		if err := enhance.Apply(edited, next, r.o.Testing); err != nil {
			r.note("%s edit failed: %v", kind, err)
			continue
		}
		cand, enh = edited, next
		pr.Refinements++
	}
}

// phaseItems turns the phase's issues into refinable items.
func phaseItems(res score.Result, kind enhance.Kind) []enhance.Item {
	var items []enhance.Item
	seen := make(map[string]bool)
	for _, is := range res.IssuesFor(score.CategoryEnhancement) {
		if is.Phase != string(kind) {
			continue
		}
		key := is.Ref
		switch {
		case key != "":
		case is.TaskID != "":
			key = "task:" + is.TaskID
		default:
			key = string(kind)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, enhance.Item{Key: key, Reason: is.Message})
	}
	return items
}

func describe(e enhance.Enhancement) string {
	switch e.Kind {
	case enhance.KindSchema:
		n := 0
		if e.Schema != nil {
			n = len(e.Schema.Entities)
		}
		return plural(n, "entity", "entities")
	case enhance.KindTest:
		return plural(len(e.Tests), "test case", "test cases")
	case enhance.KindFeature:
		return plural(len(e.Features), "feature flag", "feature flags")
	}
	return "no content"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
