// Package score evaluates a PRD against the executability rubric.
package score

import (
	"fmt"
	"strings"

	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/prd"
)

// Severity of an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Category groups issues for weighting.
type Category string

const (
	CategoryStructure   Category = "structure"
	CategoryContent     Category = "content"
	CategoryTesting     Category = "testing"
	CategoryPattern     Category = "pattern"
	CategoryEnhancement Category = "enhancement"
)

// Issue types reported by the rubric.
const (
	IssueMissingID              = "missing-id"
	IssueMissingTitle           = "missing-title"
	IssueMissingVersion         = "missing-version"
	IssueNoPhases               = "no-phases"
	IssueMissingPhaseName       = "missing-phase-name"
	IssueEmptyPhase             = "empty-phase"
	IssueMissingTaskID          = "missing-task-id"
	IssueDuplicateTaskID        = "duplicate-task-id"
	IssueMissingTaskTitle       = "missing-task-title"
	IssueMissingTaskDescription = "missing-task-description"
	IssueMissingAcceptance      = "missing-acceptance-criteria"
	IssueMissingTesting         = "missing-testing"
	IssueInvalidTesting         = "invalid-testing"
	IssueInvalidIDPattern       = "invalid-id-pattern"
	IssueIDPatternMismatch      = "id-pattern-mismatch"
	IssueIDPatternUndeclared    = "id-pattern-undeclared"
	IssueTaskIDOffPattern       = "task-id-off-pattern"

	IssueSchemaEmpty          = "schema-empty"
	IssueSchemaEntityUnnamed  = "schema-entity-unnamed"
	IssueSchemaEntityNoFields = "schema-entity-no-fields"
	IssueSchemaEntityDup      = "schema-entity-duplicate"
	IssueTestsEmpty           = "tests-empty"
	IssueTestCaseMissingID    = "test-case-missing-id"
	IssueTestCaseUnknownTask  = "test-case-unknown-task"
	IssueTaskUntested         = "task-untested"
	IssueFeaturesEmpty        = "features-empty"
	IssueFeatureUnnamed       = "feature-unnamed"
	IssueFeatureDuplicate     = "feature-duplicate"
)

// Issue is a single rubric violation.
type Issue struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Phase    string   `json:"phase,omitempty"`
	TaskID   string   `json:"taskId,omitempty"`
	// Ref is the enhancement item key for enhancement issues, e.g. "entity:User".
	Ref     string `json:"ref,omitempty"`
	Message string `json:"message"`
}

// Key identifies an issue for set comparison.
func (i Issue) Key() string {
	return strings.Join([]string{string(i.Severity), i.Type, i.Phase, i.TaskID, i.Ref, i.Message}, "|")
}

// Result is the outcome of validating a document.
type Result struct {
	// Executable is true iff there are no errors.
	Executable bool `json:"executable"`
	// Score is 100 minus the error deductions, clamped to [0,100].
	Score int `json:"score"`
	// Quality additionally deducts warnings.
	Quality  int     `json:"quality"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// HasError reports whether an error of the given type is present.
func (r Result) HasError(issueType string) bool {
	return hasIssue(r.Errors, issueType)
}

// HasWarning reports whether a warning of the given type is present.
func (r Result) HasWarning(issueType string) bool {
	return hasIssue(r.Warnings, issueType)
}

// Has reports whether an error or warning of the given type is present.
func (r Result) Has(issueType string) bool {
	return r.HasError(issueType) || r.HasWarning(issueType)
}

// IssuesFor returns the errors and warnings in the given category.
func (r Result) IssuesFor(c Category) []Issue {
	var out []Issue
	for _, list := range [][]Issue{r.Errors, r.Warnings} {
		for _, i := range list {
			if i.Category == c {
				out = append(out, i)
			}
		}
	}
	return out
}

// Signature is an order-independent fingerprint of every issue.
func (r Result) Signature() map[string]int {
	sig := make(map[string]int, len(r.Errors)+len(r.Warnings))
	for _, list := range [][]Issue{r.Errors, r.Warnings} {
		for _, i := range list {
			sig[i.Key()]++
		}
	}
	return sig
}

// SameIssues reports whether two results report exactly the same issues.
func SameIssues(a, b Result) bool {
	sa, sb := a.Signature(), b.Signature()
	if len(sa) != len(sb) {
		return false
	}
	for k, n := range sa {
		if sb[k] != n {
			return false
		}
	}
	return true
}

func hasIssue(issues []Issue, issueType string) bool {
	for _, i := range issues {
		if i.Type == issueType {
			return true
		}
	}
	return false
}

// Weights are the per-category deductions.
type Weights struct {
	Errors  map[Category]int
	Warning int
}

// DefaultWeights returns the rubric weights. Every error weight is positive.
func DefaultWeights() Weights {
	return Weights{
		Errors: map[Category]int{
			CategoryStructure:   20,
			CategoryContent:     10,
			CategoryTesting:     15,
			CategoryPattern:     10,
			CategoryEnhancement: 10,
		},
		Warning: 2,
	}
}

func (w Weights) errorWeight(c Category) int {
	if n, ok := w.Errors[c]; ok && n > 0 {
		return n
	}
	return 1
}

// Scorer applies the rubric.
type Scorer struct {
	Weights Weights
}

// New returns a Scorer with the default weights.
func New() *Scorer {
	return &Scorer{Weights: DefaultWeights()}
}

// Validate evaluates doc and any proposed enhancements.
func (s *Scorer) Validate(doc *prd.Document, proposed ...enhance.Enhancement) Result {
	c := &collector{}

	checkTopLevel(c, doc)
	checkPhases(c, doc)
	checkTesting(c, doc)
	checkIDPattern(c, doc)
	for _, e := range proposed {
		checkEnhancement(c, doc, e)
	}

	return s.finish(c)
}

func (s *Scorer) finish(c *collector) Result {
	w := s.Weights
	if w.Errors == nil {
		w = DefaultWeights()
	}

	deduction := 0
	for _, e := range c.errors {
		deduction += w.errorWeight(e.Category)
	}
	score := clamp(100 - deduction)
	quality := clamp(score - w.Warning*len(c.warnings))

	return Result{
		Executable: len(c.errors) == 0,
		Score:      score,
		Quality:    quality,
		Errors:     c.errors,
		Warnings:   c.warnings,
	}
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

type collector struct {
	errors   []Issue
	warnings []Issue
}

func (c *collector) errorf(i Issue, format string, args ...any) {
	i.Severity = SeverityError
	i.Message = fmt.Sprintf(format, args...)
	c.errors = append(c.errors, i)
}

func (c *collector) warnf(i Issue, format string, args ...any) {
	i.Severity = SeverityWarning
	i.Message = fmt.Sprintf(format, args...)
	c.warnings = append(c.warnings, i)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func checkTopLevel(c *collector, doc *prd.Document) {
	if blank(doc.ID) {
		c.errorf(Issue{Type: IssueMissingID, Category: CategoryStructure}, "document has no id")
	}
	if blank(doc.Title) {
		c.errorf(Issue{Type: IssueMissingTitle, Category: CategoryStructure}, "document has no title")
	}
	if blank(doc.Version) {
		c.errorf(Issue{Type: IssueMissingVersion, Category: CategoryStructure}, "document has no version")
	}
}

func checkPhases(c *collector, doc *prd.Document) {
	if len(doc.Phases) == 0 {
		c.errorf(Issue{Type: IssueNoPhases, Category: CategoryStructure}, "document has no phases")
		return
	}

	for i, p := range doc.Phases {
		phase := phaseLabel(p, i)
		if blank(p.Name) {
			c.errorf(Issue{Type: IssueMissingPhaseName, Category: CategoryStructure, Phase: phase},
				"phase %d has no name", i+1)
		}
		if len(p.Tasks) == 0 {
			c.errorf(Issue{Type: IssueEmptyPhase, Category: CategoryStructure, Phase: phase},
				"%s has no tasks", phase)
			continue
		}

		seen := make(map[string]bool, len(p.Tasks))
		for j, t := range p.Tasks {
			ref := t.ID
			if blank(t.ID) {
				ref = fmt.Sprintf("#%d", j+1)
				c.errorf(Issue{Type: IssueMissingTaskID, Category: CategoryContent, Phase: phase, TaskID: ref},
					"task %d in %s has no id", j+1, phase)
			} else if seen[t.ID] {
				c.errorf(Issue{Type: IssueDuplicateTaskID, Category: CategoryContent, Phase: phase, TaskID: t.ID},
					"task id %s is used more than once in %s", t.ID, phase)
			}
			seen[t.ID] = true

			if blank(t.Title) {
				c.errorf(Issue{Type: IssueMissingTaskTitle, Category: CategoryContent, Phase: phase, TaskID: ref},
					"task %s has no title", ref)
			}
			if blank(t.Description) {
				c.errorf(Issue{Type: IssueMissingTaskDescription, Category: CategoryContent, Phase: phase, TaskID: ref},
					"task %s has no description", ref)
			}
			if len(t.AcceptanceCriteria) == 0 {
				c.warnf(Issue{Type: IssueMissingAcceptance, Category: CategoryContent, Phase: phase, TaskID: ref},
					"task %s has no acceptance criteria", ref)
			}
		}
	}
}

// phaseLabel names a phase for issue reporting, falling back to its position.
func phaseLabel(p prd.Phase, index int) string {
	if !blank(p.Name) {
		return p.Name
	}
	return fmt.Sprintf("phase %d", index+1)
}

func checkTesting(c *collector, doc *prd.Document) {
	if doc.Testing == nil {
		c.errorf(Issue{Type: IssueMissingTesting, Category: CategoryTesting}, "document has no testing configuration")
		return
	}
	var missing []string
	if blank(doc.Testing.Framework) {
		missing = append(missing, "framework")
	}
	if blank(doc.Testing.Command) {
		missing = append(missing, "command")
	}
	if len(missing) > 0 {
		c.errorf(Issue{Type: IssueInvalidTesting, Category: CategoryTesting},
			"testing configuration is missing %s", strings.Join(missing, " and "))
	}
}

func checkIDPattern(c *collector, doc *prd.Document) {
	detected := doc.DetectIDPattern()
	declared := doc.IDPattern

	switch {
	case declared == "":
		if detected != "" {
			c.warnf(Issue{Type: IssueIDPatternUndeclared, Category: CategoryPattern},
				"task ids follow %s but no id pattern is declared", detected)
		}
		return
	case !strings.HasSuffix(declared, prd.IDPlaceholder) || declared == prd.IDPlaceholder:
		c.errorf(Issue{Type: IssueInvalidIDPattern, Category: CategoryPattern},
			"declared id pattern %q must be a prefix followed by %s", declared, prd.IDPlaceholder)
		return
	case detected != "" && detected != declared:
		c.errorf(Issue{Type: IssueIDPatternMismatch, Category: CategoryPattern},
			"declared id pattern %s does not match detected pattern %s", declared, detected)
		return
	}

	// Declared and valid, but ids may disagree among themselves.
	if detected == "" {
		for i, p := range doc.Phases {
			for _, t := range p.Tasks {
				if t.ID != "" && !prd.MatchesPattern(t.ID, declared) {
					c.warnf(Issue{Type: IssueTaskIDOffPattern, Category: CategoryPattern, Phase: phaseLabel(p, i), TaskID: t.ID},
						"task id %s does not follow %s", t.ID, declared)
				}
			}
		}
	}
}

func checkEnhancement(c *collector, doc *prd.Document, e enhance.Enhancement) {
	base := Issue{Category: CategoryEnhancement, Phase: string(e.Kind)}

	switch e.Kind {
	case enhance.KindSchema:
		if e.Schema == nil || len(e.Schema.Entities) == 0 {
			i := base
			i.Type = IssueSchemaEmpty
			c.errorf(i, "schema enhancement defines no entities")
			return
		}
		seen := make(map[string]bool)
		for n, ent := range e.Schema.Entities {
			i := base
			i.Ref = "entity:" + ent.Name
			switch {
			case blank(ent.Name):
				i.Type = IssueSchemaEntityUnnamed
				c.errorf(i, "schema entity %d has no name", n+1)
				continue
			case seen[ent.Name]:
				i.Type = IssueSchemaEntityDup
				c.warnf(i, "schema entity %s is defined more than once", ent.Name)
			case len(ent.Fields) == 0:
				i.Type = IssueSchemaEntityNoFields
				c.warnf(i, "schema entity %s has no fields", ent.Name)
			}
			seen[ent.Name] = true
		}

	case enhance.KindTest:
		if len(e.Tests) == 0 {
			i := base
			i.Type = IssueTestsEmpty
			c.errorf(i, "test enhancement defines no test cases")
			return
		}
		covered := make(map[string]bool)
		for n, tc := range e.Tests {
			i := base
			i.Ref = "case:" + tc.ID
			i.TaskID = tc.TaskID
			if blank(tc.ID) {
				i.Type = IssueTestCaseMissingID
				c.errorf(i, "test case %d has no id", n+1)
				continue
			}
			if tc.TaskID != "" && doc.FindTask(tc.TaskID) == nil {
				i.Type = IssueTestCaseUnknownTask
				c.errorf(i, "test case %s references unknown task %s", tc.ID, tc.TaskID)
				continue
			}
			covered[tc.TaskID] = true
		}
		for _, id := range doc.TaskIDs() {
			if id != "" && !covered[id] {
				i := base
				i.Type = IssueTaskUntested
				i.TaskID = id
				c.warnf(i, "task %s has no test case", id)
			}
		}

	case enhance.KindFeature:
		if len(e.Features) == 0 {
			i := base
			i.Type = IssueFeaturesEmpty
			c.warnf(i, "feature enhancement defines no feature flags")
			return
		}
		seen := make(map[string]bool)
		for n, f := range e.Features {
			i := base
			i.Ref = "flag:" + f.Name
			if blank(f.Name) {
				i.Type = IssueFeatureUnnamed
				c.errorf(i, "feature flag %d has no name", n+1)
				continue
			}
			if seen[f.Name] {
				i.Type = IssueFeatureDuplicate
				c.warnf(i, "feature flag %s is defined more than once", f.Name)
			}
			seen[f.Name] = true
		}
	}
}
