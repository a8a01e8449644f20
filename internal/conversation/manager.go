package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jywlabs/prdforge/internal/qa"
)

// backend is one unit of storage per conversation with atomic replace.
type backend interface {
	load(ctx context.Context, id string) (*Conversation, error)
	save(ctx context.Context, c *Conversation) error
	remove(ctx context.Context, id string) error
	loadAll(ctx context.Context) ([]*Conversation, error)
}

// manager implements Store operations as read-modify-write over a backend.
type manager struct {
	b     backend
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

func newManager(b backend) *manager {
	return &manager{
		b:     b,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

func (m *manager) Create(ctx context.Context, mode Mode, initial map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := m.now().UTC()
	c := &Conversation{
		ID:        m.newID(),
		Mode:      mode,
		State:     StateQuestioning,
		Answers:   make(map[string]qa.Answer),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(initial) > 0 {
		c.Context = make(map[string]string, len(initial))
		for k, v := range initial {
			c.Context[k] = v
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.b.save(ctx, c); err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return c.ID, nil
}

func (m *manager) RecordQuestionAnswer(ctx context.Context, id string, q qa.Question, a *qa.Answer) error {
	if q.ID == "" {
		return fmt.Errorf("question has no id")
	}
	return m.update(ctx, id, func(c *Conversation) error {
		c.record(q, a)
		return nil
	})
}

func (m *manager) UpdateState(ctx context.Context, id string, state State) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
	return m.update(ctx, id, func(c *Conversation) error {
		c.State = state
		return nil
	})
}

func (m *manager) UpdateIteration(ctx context.Context, id string, n int) error {
	if n < 0 {
		return fmt.Errorf("iteration must not be negative: %d", n)
	}
	return m.update(ctx, id, func(c *Conversation) error {
		c.Iteration = n
		return nil
	})
}

func (m *manager) GetContext(ctx context.Context, id string) (*Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.b.load(ctx, id)
}

func (m *manager) Summarize(ctx context.Context, id string, maxRecent int) (*Summary, error) {
	c, err := m.GetContext(ctx, id)
	if err != nil {
		return nil, err
	}
	return summarize(c, maxRecent), nil
}

func (m *manager) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.b.remove(ctx, id)
}

func (m *manager) List(ctx context.Context) ([]*Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.b.loadAll(ctx)
}

func (m *manager) update(ctx context.Context, id string, mutate func(*Conversation) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.b.load(ctx, id)
	if err != nil {
		return err
	}
	if err := mutate(c); err != nil {
		return err
	}
	c.UpdatedAt = m.now().UTC()
	if err := m.b.save(ctx, c); err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", id, err)
	}
	return nil
}

func decode(data []byte) (*Conversation, error) {
	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid conversation JSON: %w", err)
	}
	if c.Answers == nil {
		c.Answers = make(map[string]qa.Answer)
	}
	return &c, nil
}
