package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/jywlabs/prdforge/internal/engine"
	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/qa"
)

// Request describes one generation call for a phase.
type Request struct {
	Kind     Kind
	Document *prd.Document
	// Context carries codebase insights and the conversation digest.
	Context string
	// Answers maps question text to the answer given for it.
	Answers map[string]qa.Value
	// Feedback is free text from a rejected or edited approval.
	Feedback string
}

// AIEnhancer produces questions and enhancement content with a Generator.
type AIEnhancer struct {
	gen    engine.Generator
	opts   engine.Options
	logger *slog.Logger
}

// NewAIEnhancer creates an enhancer. A nil logger discards.
func NewAIEnhancer(gen engine.Generator, opts engine.Options, logger *slog.Logger) *AIEnhancer {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = systemPrompt
	}
	return &AIEnhancer{gen: gen, opts: opts, logger: logger}
}

const systemPrompt = "You refine product requirement documents into machine-executable task specifications. " +
	"Respond with a single JSON object and nothing else."

// Questions asks the model for clarifying questions before a phase runs.
func (a *AIEnhancer) Questions(ctx context.Context, req Request) ([]qa.Question, error) {
	resp, err := a.generate(ctx, req.Kind, "questions", buildQuestionsPrompt(req))
	if err != nil {
		return nil, err
	}

	var out struct {
		Questions []qa.Question `json:"questions"`
	}
	if err := engine.DecodeJSON(resp, &out); err != nil {
		return nil, fmt.Errorf("failed to parse questions: %w", err)
	}

	seen := make(map[string]bool)
	questions := out.Questions[:0]
	for i, q := range out.Questions {
		if strings.TrimSpace(q.Text) == "" {
			continue
		}
		if q.ID == "" || seen[q.ID] {
			q.ID = fmt.Sprintf("%s-%d", req.Kind, i+1)
			for n := i + 2; seen[q.ID]; n++ {
				q.ID = fmt.Sprintf("%s-%d", req.Kind, n)
			}
		}
		seen[q.ID] = true
		if q.Type == "" {
			q.Type = qa.TypeOpen
		}
		if q.Category == "" {
			q.Category = string(req.Kind)
		}
		if q.InferredAnswer != nil && q.InferredAnswer.IsZero() {
			q.InferredAnswer = nil
		}
		if q.InferredAnswer != nil && q.InferenceSource == "" {
			q.InferenceSource = "model"
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// Generate produces the enhancement for a phase.
func (a *AIEnhancer) Generate(ctx context.Context, req Request) (Enhancement, error) {
	resp, err := a.generate(ctx, req.Kind, "generate", buildGeneratePrompt(req))
	if err != nil {
		return Enhancement{}, err
	}
	return decodeEnhancement(req.Kind, resp)
}

// Regenerate produces replacements for the given items only. The result is
// a partial enhancement to Merge into current.
func (a *AIEnhancer) Regenerate(ctx context.Context, req Request, current Enhancement, items []Item) (Enhancement, error) {
	resp, err := a.generate(ctx, req.Kind, "regenerate", buildRegeneratePrompt(req, current, items))
	if err != nil {
		return Enhancement{}, err
	}
	return decodeEnhancement(req.Kind, resp)
}

func (a *AIEnhancer) generate(ctx context.Context, kind Kind, step, prompt string) (string, error) {
	if a.logger != nil {
		a.logger.Debug("engine request", "engine", a.gen.Name(), "phase", kind, "step", step, "prompt_bytes", len(prompt))
	}
	resp, err := a.gen.Generate(ctx, prompt, a.opts)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", kind, step, err)
	}
	return resp, nil
}

func decodeEnhancement(kind Kind, resp string) (Enhancement, error) {
	var e Enhancement
	if err := engine.DecodeJSON(resp, &e); err != nil {
		return Enhancement{}, fmt.Errorf("failed to parse %s enhancement: %w", kind, err)
	}
	if e.Kind != "" && e.Kind != kind {
		return Enhancement{}, fmt.Errorf("expected %s enhancement, got %s", kind, e.Kind)
	}
	e.Kind = kind
	switch kind {
	case KindSchema:
		e.Tests, e.Features = nil, nil
	case KindTest:
		e.Schema, e.Features = nil, nil
	case KindFeature:
		e.Schema, e.Tests = nil, nil
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		e.Confidence = 0
	}
	return e, nil
}

func writeDocument(sb *strings.Builder, doc *prd.Document) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		data = []byte("{}")
	}
	sb.WriteString("## Current PRD\n\n")
	sb.Write(data)
	sb.WriteString("\n")
}

func writeContext(sb *strings.Builder, req Request) {
	if strings.TrimSpace(req.Context) != "" {
		sb.WriteString("\n")
		sb.WriteString(strings.TrimSpace(req.Context))
		sb.WriteString("\n")
	}
	if len(req.Answers) > 0 {
		sb.WriteString("\n## Answers From The User\n\n")
		for _, q := range slices.Sorted(maps.Keys(req.Answers)) {
			fmt.Fprintf(sb, "- %s: %s\n", q, req.Answers[q].String())
		}
	}
	if req.Feedback != "" {
		fmt.Fprintf(sb, "\n## Reviewer Feedback\n\n%s\n", req.Feedback)
	}
}

func writeFormat(sb *strings.Builder, kind Kind) {
	sb.WriteString("\n## Required JSON Response Format\n\nReturn ONLY valid JSON (no markdown code fences, no explanation):\n\n")
	switch kind {
	case KindSchema:
		sb.WriteString(`{
  "kind": "schema",
  "schema": {"entities": [{"name": "User", "description": "...", "fields": [{"name": "id", "type": "uuid", "required": true}]}]},
  "confidence": 0.9,
  "lowConfidence": ["entity:User"]
}
`)
	case KindTest:
		sb.WriteString(`{
  "kind": "test",
  "tests": [{"id": "TC-1", "taskId": "<existing task id>", "description": "...", "type": "unit"}],
  "confidence": 0.9,
  "lowConfidence": ["case:TC-1"]
}
`)
	case KindFeature:
		sb.WriteString(`{
  "kind": "feature",
  "features": [{"name": "kebab-case-flag", "description": "...", "default": false}],
  "confidence": 0.9,
  "lowConfidence": ["flag:kebab-case-flag"]
}
`)
	}
	sb.WriteString("\nList in lowConfidence the keys of items you are unsure about.\n")
}

var phaseGoals = map[Kind]string{
	KindSchema:  "Define the data model (entities and their fields) the tasks need to persist.",
	KindTest:    "Plan test cases so every task is covered by at least one case linked by taskId.",
	KindFeature: "Define feature flags that let the delivered capabilities be rolled out safely.",
}

func buildQuestionsPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are preparing the %s phase of a PRD refinement.\n\n", req.Kind)
	fmt.Fprintf(&sb, "Goal of the phase: %s\n\n", phaseGoals[req.Kind])
	sb.WriteString(`## Instructions

1. Read the PRD and the context below
2. List the questions whose answers would change what you generate in this phase
3. Skip questions already answered below
4. When the codebase or PRD suggests an answer, give it as inferredAnswer with your confidence (0-1)

`)
	writeDocument(&sb, req.Document)
	writeContext(&sb, req)
	sb.WriteString(`
## Required JSON Response Format

Return ONLY valid JSON (no markdown code fences, no explanation):

{
  "questions": [
    {
      "id": "short-kebab-id",
      "text": "Question for the user",
      "type": "single-choice | open | multi-select | confirm",
      "options": ["only for choice types"],
      "required": false,
      "inferredAnswer": "string, list of strings or boolean",
      "inferenceSource": "where the inference came from",
      "confidence": 0.7
    }
  ]
}

Return {"questions": []} when nothing needs clarifying.
`)
	return sb.String()
}

func buildGeneratePrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are running the %s phase of a PRD refinement.\n\n", req.Kind)
	fmt.Fprintf(&sb, "Goal of the phase: %s\n\n", phaseGoals[req.Kind])
	writeDocument(&sb, req.Document)
	writeContext(&sb, req)
	writeFormat(&sb, req.Kind)
	return sb.String()
}

func buildRegeneratePrompt(req Request, current Enhancement, items []Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are revising selected items of the %s phase of a PRD refinement.\n\n", req.Kind)
	writeDocument(&sb, req.Document)

	data, err := json.MarshalIndent(current, "", "  ")
	if err == nil {
		sb.WriteString("\n## Current Phase Output\n\n")
		sb.Write(data)
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Items To Revise\n\n")
	for _, it := range items {
		if it.Reason != "" {
			fmt.Fprintf(&sb, "- %s: %s\n", it.Key, it.Reason)
		} else {
			fmt.Fprintf(&sb, "- %s\n", it.Key)
		}
	}
	writeContext(&sb, req)
	sb.WriteString("\nReturn only the revised items, keeping their names/ids so they replace the originals.\n")
	writeFormat(&sb, req.Kind)
	return sb.String()
}
