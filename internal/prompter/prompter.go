// Package prompter asks clarifying questions on an interactive surface.
package prompter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jywlabs/prdforge/internal/display"
	"github.com/jywlabs/prdforge/internal/qa"
)

// ErrUserCancelled is returned when the user quits or input ends.
var ErrUserCancelled = errors.New("cancelled by user")

// Prompter obtains an answer for a question.
type Prompter interface {
	Ask(ctx context.Context, q qa.Question) (qa.Answer, error)
}

// Func adapts a function to the Prompter interface.
type Func func(ctx context.Context, q qa.Question) (qa.Answer, error)

// Ask calls f.
func (f Func) Ask(ctx context.Context, q qa.Question) (qa.Answer, error) { return f(ctx, q) }

// Terminal reads answers line by line. Empty input accepts the inferred
// answer; "q" cancels the session.
type Terminal struct {
	in   io.Reader
	out  io.Writer
	now  func() time.Time
	once sync.Once
	line chan lineResult

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

type lineResult struct {
	text string
	err  error
}

// NewTerminal creates a terminal prompter.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:      in,
		out:     out,
		now:     time.Now,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Close stops the reader goroutine. A read already blocked on in is only
// released when in is an io.Closer, which Close then closes.
func (t *Terminal) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		if c, ok := t.in.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

func (t *Terminal) start() {
	t.line = make(chan lineResult)
	go func() {
		defer close(t.stopped)
		r := bufio.NewReader(t.in)
		for {
			s, err := r.ReadString('\n')
			if err != nil && s == "" {
				select {
				case t.line <- lineResult{err: err}:
					close(t.line)
				case <-t.done:
				}
				return
			}
			select {
			case t.line <- lineResult{text: s}:
			case <-t.done:
				return
			}
		}
	}()
}

func (t *Terminal) readLine(ctx context.Context) (string, error) {
	t.once.Do(t.start)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.done:
		return "", ErrUserCancelled
	case res, ok := <-t.line:
		if !ok || res.err != nil {
			return "", ErrUserCancelled
		}
		return strings.TrimSpace(res.text), nil
	}
}

// Ask renders the question and reads until a valid answer is given.
func (t *Terminal) Ask(ctx context.Context, q qa.Question) (qa.Answer, error) {
	fmt.Fprintln(t.out, display.QuestionBox().Render(render(q)))

	for {
		fmt.Fprint(t.out, "> ")
		input, err := t.readLine(ctx)
		if err != nil {
			return qa.Answer{}, err
		}
		if input == "q" || input == ":q" {
			return qa.Answer{}, ErrUserCancelled
		}

		ans := qa.Answer{QuestionID: q.ID, Timestamp: t.now()}
		if input == "" {
			switch {
			case q.InferredAnswer != nil && !q.InferredAnswer.IsZero():
				ans.Value = *q.InferredAnswer
				return ans, nil
			case !q.Required:
				ans.Skipped = true
				return ans, nil
			}
			fmt.Fprintln(t.out, display.StyleWarning.Render("an answer is required"))
			continue
		}

		v, err := Parse(q, input)
		if err != nil {
			fmt.Fprintln(t.out, display.StyleWarning.Render(err.Error()))
			continue
		}
		ans.Value = v
		return ans, nil
	}
}

func render(q qa.Question) string {
	var b strings.Builder
	b.WriteString(display.StyleBold.Render(q.Text))
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, opt)
	}
	switch q.Type {
	case qa.TypeMultiSelect:
		b.WriteString("\n" + display.StyleMuted.Render("comma-separated numbers or names"))
	case qa.TypeConfirm:
		b.WriteString("\n" + display.StyleMuted.Render("y/n"))
	}
	if q.InferredAnswer != nil && !q.InferredAnswer.IsZero() {
		hint := fmt.Sprintf("[enter] %s", q.InferredAnswer.String())
		if q.Confidence > 0 {
			hint += fmt.Sprintf(" (%.0f%% confident)", q.Confidence*100)
		}
		b.WriteString("\n" + display.StyleMuted.Render(hint))
	}
	return b.String()
}

// Parse converts typed input to an answer value for the question type.
func Parse(q qa.Question, input string) (qa.Value, error) {
	switch q.Type {
	case qa.TypeConfirm:
		switch strings.ToLower(input) {
		case "y", "yes", "true":
			return qa.Bool(true), nil
		case "n", "no", "false":
			return qa.Bool(false), nil
		}
		return qa.Value{}, fmt.Errorf("answer y or n")
	case qa.TypeSingleChoice:
		if len(q.Options) == 0 {
			return qa.Text(input), nil
		}
		opt, err := option(q.Options, input)
		if err != nil {
			return qa.Value{}, err
		}
		return qa.Text(opt), nil
	case qa.TypeMultiSelect:
		var picked []string
		for _, part := range strings.Split(input, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if len(q.Options) == 0 {
				picked = append(picked, part)
				continue
			}
			opt, err := option(q.Options, part)
			if err != nil {
				return qa.Value{}, err
			}
			picked = append(picked, opt)
		}
		if len(picked) == 0 {
			return qa.Value{}, fmt.Errorf("select at least one option")
		}
		return qa.List(picked...), nil
	default:
		return qa.Text(input), nil
	}
}

func option(options []string, input string) (string, error) {
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], nil
		}
		return "", fmt.Errorf("choose a number between 1 and %d", len(options))
	}
	for _, opt := range options {
		if strings.EqualFold(opt, input) {
			return opt, nil
		}
	}
	return "", fmt.Errorf("unknown option %q", input)
}

// Auto answers every question without user input: the inferred answer when
// present, otherwise the first option, otherwise a skip.
type Auto struct {
	Now func() time.Time
}

// Ask returns the automatic answer for q.
func (a Auto) Ask(ctx context.Context, q qa.Question) (qa.Answer, error) {
	if err := ctx.Err(); err != nil {
		return qa.Answer{}, err
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	ans := qa.Answer{QuestionID: q.ID, Timestamp: now()}
	switch {
	case q.InferredAnswer != nil && !q.InferredAnswer.IsZero():
		ans.Value = *q.InferredAnswer
	case q.Type == qa.TypeConfirm:
		ans.Value = qa.Bool(true)
	case len(q.Options) > 0 && q.Type == qa.TypeMultiSelect:
		ans.Value = qa.List(q.Options[0])
	case len(q.Options) > 0:
		ans.Value = qa.Text(q.Options[0])
	default:
		ans.Skipped = true
	}
	return ans, nil
}
