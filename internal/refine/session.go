package refine

import (
	"context"

	"github.com/jywlabs/prdforge/internal/conversation"
	"github.com/jywlabs/prdforge/internal/qa"
)

// openConversation resumes opts.ConversationID or creates a conversation.
// Store failures other than cancellation disable the store for the run.
func (r *run) openConversation(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	if id := r.opts.ConversationID; id != "" {
		conv, err := r.store.GetContext(ctx, id)
		if err == nil {
			r.convID = id
			r.res.Resumed = true
			for _, it := range conv.Items {
				if it.Answer == nil {
					continue
				}
				r.prior[it.Question.ID] = *it.Answer
				r.priorText[normalize(it.Question.Text)] = *it.Answer
			}
			r.logger.Info("conversation resumed", "conversation", id, "answers", len(r.prior))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r.note("conversation %s unavailable (%v), started a new one", id, err)
	}

	id, err := r.store.Create(ctx, r.opts.Mode, r.rctx.Values)
	if err != nil {
		return r.storeFailed(ctx, err)
	}
	r.convID = id
	return nil
}

// record stores an answer in the run and the conversation.
func (r *run) record(ctx context.Context, q qa.Question, a qa.Answer) error {
	if !a.Skipped && !a.Value.IsZero() {
		r.answers[q.Text] = a.Value
	}
	if r.store == nil {
		return nil
	}
	if err := r.store.RecordQuestionAnswer(ctx, r.convID, q, &a); err != nil {
		return r.storeFailed(ctx, err)
	}
	return nil
}

func (r *run) setState(ctx context.Context, state conversation.State) {
	if r.store == nil {
		return
	}
	if err := r.store.UpdateState(ctx, r.convID, state); err != nil {
		r.storeFailed(ctx, err)
	}
}

func (r *run) updateIteration(ctx context.Context) {
	if r.store == nil {
		return
	}
	if err := r.store.UpdateIteration(ctx, r.convID, r.res.Iterations); err != nil {
		r.storeFailed(ctx, err)
	}
}

// storeFailed returns ctx's error when the run was cancelled; otherwise it
// notes the failure and continues without the store.
func (r *run) storeFailed(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	r.logger.Warn("conversation store failed", "conversation", r.convID, "error", err)
	r.note("conversation store disabled: %v", err)
	r.store = nil
	return nil
}
