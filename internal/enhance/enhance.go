// Package enhance models the content produced by the schema, test and
// feature enhancement phases and applies it to a document.
package enhance

import (
	"fmt"
	"strings"

	"github.com/jywlabs/prdforge/internal/prd"
)

// Kind identifies an enhancement phase.
type Kind string

const (
	KindSchema  Kind = "schema"
	KindTest    Kind = "test"
	KindFeature Kind = "feature"
)

// Kinds lists the phases in the order they run.
var Kinds = []Kind{KindSchema, KindTest, KindFeature}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSchema, KindTest, KindFeature:
		return k, nil
	default:
		return "", fmt.Errorf("unknown enhancement phase: %q (supported: schema, test, feature)", s)
	}
}

// Enhancement is a tagged union: exactly one payload matches Kind.
type Enhancement struct {
	Kind       Kind              `json:"kind"`
	Schema     *prd.Schema       `json:"schema,omitempty"`
	Tests      []prd.TestCase    `json:"tests,omitempty"`
	Features   []prd.FeatureFlag `json:"features,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	// LowConfidence lists item keys the generator was unsure about.
	LowConfidence []string `json:"lowConfidence,omitempty"`
}

// Item is a single addressable element of an enhancement.
type Item struct {
	Key    string // "entity:User", "case:TC-1", "flag:dark-mode"
	Reason string // why the item needs follow-up; empty when complete
}

// Items returns every element of the payload, keyed.
func (e Enhancement) Items() []Item {
	var items []Item
	switch e.Kind {
	case KindSchema:
		if e.Schema == nil {
			return nil
		}
		for _, ent := range e.Schema.Entities {
			it := Item{Key: "entity:" + ent.Name}
			if len(ent.Fields) == 0 {
				it.Reason = fmt.Sprintf("entity %s has no fields", ent.Name)
			}
			items = append(items, it)
		}
	case KindTest:
		for _, tc := range e.Tests {
			it := Item{Key: "case:" + tc.ID}
			switch {
			case strings.TrimSpace(tc.Description) == "":
				it.Reason = fmt.Sprintf("test case %s has no description", tc.ID)
			case tc.TaskID == "":
				it.Reason = fmt.Sprintf("test case %s is not linked to a task", tc.ID)
			}
			items = append(items, it)
		}
	case KindFeature:
		for _, f := range e.Features {
			it := Item{Key: "flag:" + f.Name}
			if strings.TrimSpace(f.Description) == "" {
				it.Reason = fmt.Sprintf("feature flag %s has no description", f.Name)
			}
			items = append(items, it)
		}
	}
	return items
}

// Incomplete returns items that are incomplete or flagged as low confidence.
func (e Enhancement) Incomplete() []Item {
	low := make(map[string]bool, len(e.LowConfidence))
	for _, k := range e.LowConfidence {
		low[k] = true
	}

	var out []Item
	for _, it := range e.Items() {
		if it.Reason == "" && low[it.Key] {
			it.Reason = fmt.Sprintf("%s was generated with low confidence", it.Key)
		}
		if it.Reason != "" {
			out = append(out, it)
		}
	}
	return out
}

// Empty reports whether the payload carries no items.
func (e Enhancement) Empty() bool {
	return len(e.Items()) == 0
}

// Merge replaces items of e with same-keyed items from partial and appends
// new ones. Low-confidence markers for replaced items are cleared.
func (e Enhancement) Merge(partial Enhancement) (Enhancement, error) {
	if partial.Kind != e.Kind {
		return e, fmt.Errorf("cannot merge %s enhancement into %s", partial.Kind, e.Kind)
	}

	out := e
	replaced := make(map[string]bool)

	switch e.Kind {
	case KindSchema:
		var entities []prd.Entity
		if e.Schema != nil {
			entities = append(entities, e.Schema.Entities...)
		}
		if partial.Schema != nil {
			for _, ent := range partial.Schema.Entities {
				replaced["entity:"+ent.Name] = true
				entities = upsert(entities, ent, func(x prd.Entity) bool { return x.Name == ent.Name })
			}
		}
		out.Schema = &prd.Schema{Entities: entities}
	case KindTest:
		tests := append([]prd.TestCase(nil), e.Tests...)
		for _, tc := range partial.Tests {
			replaced["case:"+tc.ID] = true
			tests = upsert(tests, tc, func(x prd.TestCase) bool { return x.ID == tc.ID })
		}
		out.Tests = tests
	case KindFeature:
		flags := append([]prd.FeatureFlag(nil), e.Features...)
		for _, f := range partial.Features {
			replaced["flag:"+f.Name] = true
			flags = upsert(flags, f, func(x prd.FeatureFlag) bool { return x.Name == f.Name })
		}
		out.Features = flags
	default:
		return e, fmt.Errorf("unknown enhancement kind: %q", e.Kind)
	}

	out.LowConfidence = nil
	for _, k := range e.LowConfidence {
		if !replaced[k] {
			out.LowConfidence = append(out.LowConfidence, k)
		}
	}
	out.LowConfidence = append(out.LowConfidence, partial.LowConfidence...)
	return out, nil
}

func upsert[T any](items []T, item T, match func(T) bool) []T {
	for i := range items {
		if match(items[i]) {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

// TestingDefaults fills a testing descriptor created by Apply.
type TestingDefaults struct {
	Framework string `yaml:"framework"`
	Command   string `yaml:"command"`
}

// Apply writes the enhancement into the document.
func Apply(doc *prd.Document, e Enhancement, defaults TestingDefaults) error {
	switch e.Kind {
	case KindSchema:
		if e.Schema == nil {
			return nil
		}
		if doc.Schema == nil {
			doc.Schema = &prd.Schema{}
		}
		for _, ent := range e.Schema.Entities {
			doc.Schema.Entities = upsert(doc.Schema.Entities, ent, func(x prd.Entity) bool { return x.Name == ent.Name })
		}
	case KindTest:
		if len(e.Tests) == 0 {
			return nil
		}
		if doc.Testing == nil {
			doc.Testing = &prd.Testing{Framework: defaults.Framework, Command: defaults.Command}
		}
		for _, tc := range e.Tests {
			doc.Testing.Cases = upsert(doc.Testing.Cases, tc, func(x prd.TestCase) bool { return x.ID == tc.ID })
		}
	case KindFeature:
		if len(e.Features) == 0 {
			return nil
		}
		if doc.Config == nil {
			doc.Config = &prd.FeatureConfig{}
		}
		for _, f := range e.Features {
			doc.Config.Flags = upsert(doc.Config.Flags, f, func(x prd.FeatureFlag) bool { return x.Name == f.Name })
		}
	default:
		return fmt.Errorf("unknown enhancement kind: %q", e.Kind)
	}
	return nil
}
