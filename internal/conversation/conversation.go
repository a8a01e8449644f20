// Package conversation persists the question/answer state of a refinement
// session so it can be resumed.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jywlabs/prdforge/internal/qa"
)

// ErrNotFound is returned for an unknown conversation id.
var ErrNotFound = errors.New("conversation not found")

// ErrInvalidState is returned when UpdateState is given an unknown state.
var ErrInvalidState = errors.New("invalid conversation state")

// Mode is how the session started.
type Mode string

const (
	ModeConvert Mode = "convert"
	ModeEnhance Mode = "enhance"
	ModeCreate  Mode = "create"
)

// State is the lifecycle state of a conversation.
type State string

const (
	StateQuestioning State = "questioning"
	StateRefining    State = "refining"
	StateComplete    State = "complete"
	StatePaused      State = "paused"
	StateError       State = "error"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateQuestioning, StateRefining, StateComplete, StatePaused, StateError:
		return true
	}
	return false
}

// Item pairs a question with its answer, if any.
type Item struct {
	Question qa.Question `json:"question"`
	Answer   *qa.Answer  `json:"answer,omitempty"`
}

// Conversation is the persisted session state.
type Conversation struct {
	ID            string               `json:"id"`
	Mode          Mode                 `json:"mode"`
	State         State                `json:"state"`
	Iteration     int                  `json:"iteration"`
	Items         []Item               `json:"items"`
	Answers       map[string]qa.Answer `json:"answers"`
	Context       map[string]string    `json:"context,omitempty"`
	QuestionCount int                  `json:"questionCount"`
	AnswerCount   int                  `json:"answerCount"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// Answer returns the recorded answer for a question id.
func (c *Conversation) Answer(questionID string) (qa.Answer, bool) {
	a, ok := c.Answers[questionID]
	return a, ok
}

// record upserts the item for q and its answer.
func (c *Conversation) record(q qa.Question, a *qa.Answer) {
	item := Item{Question: q}
	if a != nil {
		cp := *a
		cp.QuestionID = q.ID
		item.Answer = &cp
		if c.Answers == nil {
			c.Answers = make(map[string]qa.Answer)
		}
		c.Answers[q.ID] = cp
	}

	replaced := false
	for i := range c.Items {
		if c.Items[i].Question.ID != q.ID {
			continue
		}
		if item.Answer == nil {
			item.Answer = c.Items[i].Answer
		}
		c.Items[i] = item
		replaced = true
		break
	}
	if !replaced {
		c.Items = append(c.Items, item)
	}

	c.QuestionCount = len(c.Items)
	c.AnswerCount = len(c.Answers)
}

// Summary is a compact view for prompts: recent items verbatim plus a digest
// of everything older.
type Summary struct {
	ID         string `json:"id"`
	Mode       Mode   `json:"mode"`
	State      State  `json:"state"`
	Iteration  int    `json:"iteration"`
	TotalItems int    `json:"totalItems"`
	Recent     []Item `json:"recent"`
	Digest     string `json:"digest,omitempty"`
}

// summarize builds a Summary keeping at most maxRecent items verbatim.
func summarize(c *Conversation, maxRecent int) *Summary {
	if maxRecent < 0 {
		maxRecent = 0
	}
	split := len(c.Items) - maxRecent
	if split < 0 {
		split = 0
	}

	s := &Summary{
		ID:         c.ID,
		Mode:       c.Mode,
		State:      c.State,
		Iteration:  c.Iteration,
		TotalItems: len(c.Items),
		Recent:     append([]Item(nil), c.Items[split:]...),
	}

	var sb strings.Builder
	for _, it := range c.Items[:split] {
		fmt.Fprintf(&sb, "Q: %s\n", it.Question.Text)
		switch {
		case it.Answer == nil:
			sb.WriteString("A: (unanswered)\n")
		case it.Answer.Skipped:
			sb.WriteString("A: (skipped)\n")
		default:
			fmt.Fprintf(&sb, "A: %s\n", it.Answer.Value.String())
		}
	}
	s.Digest = strings.TrimRight(sb.String(), "\n")
	return s
}

// Store persists conversations. Unknown ids fail with ErrNotFound.
type Store interface {
	Create(ctx context.Context, mode Mode, initial map[string]string) (string, error)
	RecordQuestionAnswer(ctx context.Context, id string, q qa.Question, a *qa.Answer) error
	UpdateState(ctx context.Context, id string, state State) error
	UpdateIteration(ctx context.Context, id string, n int) error
	GetContext(ctx context.Context, id string) (*Conversation, error)
	Summarize(ctx context.Context, id string, maxRecent int) (*Summary, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Conversation, error)
}
