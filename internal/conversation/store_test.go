package conversation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jywlabs/prdforge/internal/qa"
)

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlStore, err := OpenSQL(context.Background(), DriverSQLite, "file:"+filepath.Join(t.TempDir(), "conversations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })

	return map[string]Store{
		"file":   NewFileStore(filepath.Join(t.TempDir(), "conversations")),
		"sqlite": sqlStore,
	}
}

func question(id, text string) qa.Question {
	return qa.Question{ID: id, Text: text, Type: qa.TypeOpen}
}

func answer(id string, v qa.Value) *qa.Answer {
	return &qa.Answer{QuestionID: id, Value: v, Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id, err := store.Create(ctx, ModeEnhance, map[string]string{"source": "prd.md"})
			require.NoError(t, err)
			require.NotEmpty(t, id)

			c, err := store.GetContext(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, ModeEnhance, c.Mode)
			assert.Equal(t, StateQuestioning, c.State)
			assert.Equal(t, "prd.md", c.Context["source"])

			require.NoError(t, store.RecordQuestionAnswer(ctx, id, question("q1", "Which DB?"), answer("q1", qa.Text("postgres"))))
			require.NoError(t, store.RecordQuestionAnswer(ctx, id, question("q2", "Auth?"), nil))
			require.NoError(t, store.UpdateState(ctx, id, StateRefining))
			require.NoError(t, store.UpdateIteration(ctx, id, 2))

			c, err = store.GetContext(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, StateRefining, c.State)
			assert.Equal(t, 2, c.Iteration)
			assert.Equal(t, 2, c.QuestionCount)
			assert.Equal(t, 1, c.AnswerCount)
			assert.Len(t, c.Items, 2)
			got, ok := c.Answer("q1")
			require.True(t, ok)
			assert.Equal(t, "postgres", got.Value.String())
			assert.False(t, c.UpdatedAt.Before(c.CreatedAt))

			list, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, id, list[0].ID)

			require.NoError(t, store.Delete(ctx, id))
			_, err = store.GetContext(ctx, id)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id, err := store.Create(ctx, ModeCreate, nil)
			require.NoError(t, err)

			q := question("db", "Which database?")
			require.NoError(t, store.RecordQuestionAnswer(ctx, id, q, answer("db", qa.Text("mysql"))))
			require.NoError(t, store.RecordQuestionAnswer(ctx, id, q, answer("db", qa.Text("postgres"))))
			// Re-applying the same answer is a no-op.
			require.NoError(t, store.RecordQuestionAnswer(ctx, id, q, answer("db", qa.Text("postgres"))))

			c, err := store.GetContext(ctx, id)
			require.NoError(t, err)
			assert.Len(t, c.Items, 1)
			assert.Equal(t, 1, c.QuestionCount)
			assert.Equal(t, 1, c.AnswerCount)
			assert.Equal(t, "postgres", c.Answers["db"].Value.Text)
			assert.Equal(t, "postgres", c.Items[0].Answer.Value.Text)
		})
	}
}

func TestStore_RecordWithoutAnswerKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id, err := store.Create(ctx, ModeCreate, nil)
			require.NoError(t, err)

			require.NoError(t, store.RecordQuestionAnswer(ctx, id, question("q", "v1"), answer("q", qa.Bool(true))))
			require.NoError(t, store.RecordQuestionAnswer(ctx, id, question("q", "v2"), nil))

			c, err := store.GetContext(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, c.Items[0].Answer)
			assert.Equal(t, "v2", c.Items[0].Question.Text)
			assert.True(t, c.Items[0].Answer.Value.Bool)
		})
	}
}

func TestStore_UnknownID(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, store.UpdateState(ctx, "missing", StatePaused), ErrNotFound)
			assert.ErrorIs(t, store.UpdateIteration(ctx, "missing", 1), ErrNotFound)
			assert.ErrorIs(t, store.RecordQuestionAnswer(ctx, "missing", question("q", "x"), nil), ErrNotFound)
			assert.ErrorIs(t, store.Delete(ctx, "missing"), ErrNotFound)
			_, err := store.Summarize(ctx, "missing", 3)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_InvalidInput(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id, err := store.Create(ctx, ModeConvert, nil)
			require.NoError(t, err)

			assert.ErrorIs(t, store.UpdateState(ctx, id, State("done")), ErrInvalidState)
			assert.Error(t, store.UpdateIteration(ctx, id, -1))
			assert.Error(t, store.RecordQuestionAnswer(ctx, id, qa.Question{Text: "no id"}, nil))
		})
	}
}

func TestStore_Summarize(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id, err := store.Create(ctx, ModeEnhance, nil)
			require.NoError(t, err)

			require.NoError(t, store.RecordQuestionAnswer(ctx, id, question("q1", "Which DB?"), answer("q1", qa.Text("postgres"))))
			skipped := answer("q2", qa.Value{})
			skipped.Skipped = true
			require.NoError(t, store.RecordQuestionAnswer(ctx, id, question("q2", "Cache?"), skipped))
			require.NoError(t, store.RecordQuestionAnswer(ctx, id, question("q3", "Regions?"), answer("q3", qa.List("eu", "us"))))
			require.NoError(t, store.RecordQuestionAnswer(ctx, id, question("q4", "Auth?"), nil))

			s, err := store.Summarize(ctx, id, 2)
			require.NoError(t, err)
			assert.Equal(t, 4, s.TotalItems)
			require.Len(t, s.Recent, 2)
			assert.Equal(t, "q3", s.Recent[0].Question.ID)
			assert.Equal(t, "q4", s.Recent[1].Question.ID)
			assert.Equal(t, "Q: Which DB?\nA: postgres\nQ: Cache?\nA: (skipped)", s.Digest)

			all, err := store.Summarize(ctx, id, 10)
			require.NoError(t, err)
			assert.Len(t, all.Recent, 4)
			assert.Empty(t, all.Digest)

			none, err := store.Summarize(ctx, id, 0)
			require.NoError(t, err)
			assert.Empty(t, none.Recent)
			assert.Contains(t, none.Digest, "A: eu, us")
			assert.Contains(t, none.Digest, "Q: Auth?\nA: (unanswered)")
		})
	}
}

func TestStore_ConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const sessions = 4
			ids := make([]string, sessions)
			for i := range ids {
				id, err := store.Create(ctx, ModeCreate, nil)
				require.NoError(t, err)
				ids[i] = id
			}

			var wg sync.WaitGroup
			errs := make(chan error, sessions*5)
			for _, id := range ids {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					for j := 0; j < 5; j++ {
						qid := fmt.Sprintf("q%d", j)
						errs <- store.RecordQuestionAnswer(ctx, id, question(qid, qid), answer(qid, qa.Text(id)))
					}
				}(id)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			for _, id := range ids {
				c, err := store.GetContext(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, 5, c.AnswerCount)
				for _, a := range c.Answers {
					assert.Equal(t, id, a.Value.Text)
				}
			}
		})
	}
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewFileStore(t.TempDir())
	_, err := store.Create(ctx, ModeCreate, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, err := store.GetContext(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_ListIgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)

	id, err := store.Create(ctx, ModeCreate, nil)
	require.NoError(t, err)
	require.NoError(t, writeFile(filepath.Join(dir, "notes.txt"), "x"))
	require.NoError(t, writeFile(filepath.Join(dir, "broken.json"), "{"))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestOpenSQL_UnsupportedDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "mysql", "dsn")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported"))
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &SQLStore{driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}
