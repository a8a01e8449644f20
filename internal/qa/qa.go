// Package qa defines the questions asked while building a PRD and the
// answers collected for them.
package qa

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// QuestionType describes how a question is answered.
type QuestionType string

const (
	TypeSingleChoice QuestionType = "single-choice"
	TypeOpen         QuestionType = "open"
	TypeMultiSelect  QuestionType = "multi-select"
	TypeConfirm      QuestionType = "confirm"
)

// Question is a clarifying question produced by a phase hook.
// Questions are treated as immutable once created.
type Question struct {
	ID              string       `json:"id"`
	Text            string       `json:"text"`
	Type            QuestionType `json:"type"`
	Options         []string     `json:"options,omitempty"`
	Required        bool         `json:"required,omitempty"`
	Category        string       `json:"category,omitempty"`
	InferredAnswer  *Value       `json:"inferredAnswer,omitempty"`
	InferenceSource string       `json:"inferenceSource,omitempty"`
	Confidence      float64      `json:"confidence"`
}

// Answer is the response to a Question.
type Answer struct {
	QuestionID string    `json:"questionId"`
	Value      Value     `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	Skipped    bool      `json:"skipped,omitempty"`
}

// ValueKind identifies which field of a Value is populated.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindText
	KindList
	KindBool
)

// Value holds an answer value: a string, a list of strings or a boolean.
type Value struct {
	Kind ValueKind
	Text string
	List []string
	Bool bool
}

// Text returns a string Value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// List returns a string-list Value.
func List(items ...string) Value {
	return Value{Kind: KindList, List: append([]string(nil), items...)}
}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IsZero reports whether no value is set.
func (v Value) IsZero() bool { return v.Kind == KindNone }

// Ptr returns a pointer to a copy of v, for use as an inferred answer.
func (v Value) Ptr() *Value { return &v }

// String renders the value for prompts and digests.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindList:
		return strings.Join(v.List, ", ")
	case KindBool:
		if v.Bool {
			return "yes"
		}
		return "no"
	default:
		return ""
	}
}

// Equal reports whether two values hold the same data.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindText:
		return v.Text == o.Text
	case KindBool:
		return v.Bool == o.Bool
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != o.List[i] {
				return false
			}
		}
	}
	return true
}

// MarshalJSON encodes the value as a bare JSON string, array or boolean.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindText:
		return json.Marshal(v.Text)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a bare JSON string, array or boolean. Numbers are
// kept as their literal text. Anything else decodes to the zero Value so one
// malformed answer does not reject the surrounding document.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			*v = Value{}
			return nil
		}
		*v = Value{Kind: KindList, List: list}
	case 't', 'f':
		b, err := strconv.ParseBool(string(data))
		if err != nil {
			return err
		}
		*v = Bool(b)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Text(n.String())
	default:
		*v = Value{}
	}
	return nil
}
