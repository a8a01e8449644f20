package autofix

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/score"
)

// Fixer is a deterministic repair for one class of rubric issue.
// Apply must only touch the field its issue names, and Applies must be
// false once the repair has been made.
type Fixer struct {
	Name    string
	Applies func(res score.Result) bool
	// Apply mutates doc and returns a description of the change.
	Apply func(doc *prd.Document) string
}

// Fixer names, in priority order.
const (
	FixIDPattern        = "id-pattern"
	FixTestingConfig    = "testing-config"
	FixMissingID        = "missing-prd-id"
	FixMissingTitle     = "missing-title"
	FixMissingVersion   = "missing-version"
	FixMissingPhaseName = "missing-phase-name"
	FixMissingTaskTitle = "missing-task-title"
	FixMissingTaskDesc  = "missing-task-description"
	FixEmptyPhase       = "empty-phase"
	FixMissingTaskID    = "missing-task-id"
	FixDuplicateTaskID  = "duplicate-task-id"
)

// DefaultDocumentVersion is assigned to documents without a version.
const DefaultDocumentVersion = "1.0.0"

// DefaultTesting fills a missing testing descriptor when the config has none.
var DefaultTesting = enhance.TestingDefaults{Framework: "go", Command: "go test ./..."}

// Catalog returns the fixers in priority order.
func Catalog(testing enhance.TestingDefaults) []Fixer {
	if blank(testing.Framework) {
		testing.Framework = DefaultTesting.Framework
	}
	if blank(testing.Command) {
		testing.Command = DefaultTesting.Command
	}

	return []Fixer{
		{
			Name: FixIDPattern,
			Applies: func(r score.Result) bool {
				return r.HasError(score.IssueIDPatternMismatch) ||
					r.HasError(score.IssueInvalidIDPattern) ||
					r.HasWarning(score.IssueIDPatternUndeclared)
			},
			Apply: fixIDPattern,
		},
		{
			Name: FixTestingConfig,
			Applies: func(r score.Result) bool {
				return r.HasError(score.IssueMissingTesting) || r.HasError(score.IssueInvalidTesting)
			},
			Apply: func(doc *prd.Document) string { return fixTesting(doc, testing) },
		},
		{
			Name:    FixMissingID,
			Applies: func(r score.Result) bool { return r.HasError(score.IssueMissingID) },
			Apply:   fixMissingID,
		},
		{
			Name:    FixMissingTitle,
			Applies: func(r score.Result) bool { return r.HasError(score.IssueMissingTitle) },
			Apply:   fixMissingTitle,
		},
		{
			Name:    FixMissingVersion,
			Applies: func(r score.Result) bool { return r.HasError(score.IssueMissingVersion) },
			Apply: func(doc *prd.Document) string {
				doc.Version = DefaultDocumentVersion
				return "set version to " + DefaultDocumentVersion
			},
		},
		{
			Name:    FixMissingPhaseName,
			Applies: func(r score.Result) bool { return r.HasError(score.IssueMissingPhaseName) },
			Apply:   fixPhaseNames,
		},
		{
			Name:    FixMissingTaskTitle,
			Applies: func(r score.Result) bool { return r.HasError(score.IssueMissingTaskTitle) },
			Apply:   fixTaskTitles,
		},
		{
			Name:    FixMissingTaskDesc,
			Applies: func(r score.Result) bool { return r.HasError(score.IssueMissingTaskDescription) },
			Apply:   fixTaskDescriptions,
		},
		{
			// Requires an existing phase; a document without phases has nothing to fill.
			Name:    FixEmptyPhase,
			Applies: func(r score.Result) bool { return r.HasError(score.IssueEmptyPhase) },
			Apply:   fixEmptyPhases,
		},
		{
			Name:    FixMissingTaskID,
			Applies: func(r score.Result) bool { return r.HasError(score.IssueMissingTaskID) },
			Apply:   fixMissingTaskIDs,
		},
		{
			Name:    FixDuplicateTaskID,
			Applies: func(r score.Result) bool { return r.HasError(score.IssueDuplicateTaskID) },
			Apply:   fixDuplicateTaskIDs,
		},
	}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func fixIDPattern(doc *prd.Document) string {
	old := doc.IDPattern
	pattern := doc.DetectIDPattern()
	if pattern == "" {
		pattern = prd.DefaultIDPattern
	}
	doc.IDPattern = pattern
	if old == "" {
		return fmt.Sprintf("declared id pattern %s", pattern)
	}
	return fmt.Sprintf("corrected id pattern %s -> %s", old, pattern)
}

func fixTesting(doc *prd.Document, defaults enhance.TestingDefaults) string {
	if doc.Testing == nil {
		doc.Testing = &prd.Testing{Framework: defaults.Framework, Command: defaults.Command}
		return fmt.Sprintf("added testing configuration (%s: %s)", defaults.Framework, defaults.Command)
	}
	var filled []string
	if blank(doc.Testing.Framework) {
		doc.Testing.Framework = defaults.Framework
		filled = append(filled, "framework")
	}
	if blank(doc.Testing.Command) {
		doc.Testing.Command = defaults.Command
		filled = append(filled, "command")
	}
	return "completed testing " + strings.Join(filled, " and ")
}

func fixMissingID(doc *prd.Document) string {
	id := prd.Slugify(doc.Title)
	if id == "" {
		id = "untitled"
	}
	doc.ID = id
	return "set document id to " + id
}

func fixMissingTitle(doc *prd.Document) string {
	title := prd.TitleFromID(doc.ID)
	if title == "" {
		title = "Untitled PRD"
	}
	doc.Title = title
	return fmt.Sprintf("set document title to %q", title)
}

func fixPhaseNames(doc *prd.Document) string {
	var named []string
	for i := range doc.Phases {
		if blank(doc.Phases[i].Name) {
			doc.Phases[i].Name = fmt.Sprintf("Phase %d", i+1)
			named = append(named, doc.Phases[i].Name)
		}
	}
	return "named " + strings.Join(named, ", ")
}

func fixTaskTitles(doc *prd.Document) string {
	var fixed []string
	eachTask(doc, func(_ *prd.Phase, t *prd.Task, n int) {
		if !blank(t.Title) {
			return
		}
		t.Title = inventTitle(t, n)
		fixed = append(fixed, taskRef(t, n))
	})
	return "generated titles for " + strings.Join(fixed, ", ")
}

const maxInventedTitle = 60

func inventTitle(t *prd.Task, n int) string {
	if title := prd.TitleFromID(t.ID); title != "" {
		return title
	}
	if desc := strings.TrimSpace(t.Description); desc != "" {
		if i := strings.IndexAny(desc, ".\n"); i > 0 {
			desc = desc[:i]
		}
		if utf8.RuneCountInString(desc) > maxInventedTitle {
			desc = strings.TrimSpace(string([]rune(desc)[:maxInventedTitle]))
		}
		return desc
	}
	return fmt.Sprintf("Task %d", n)
}

func fixTaskDescriptions(doc *prd.Document) string {
	var fixed []string
	eachTask(doc, func(p *prd.Phase, t *prd.Task, n int) {
		if !blank(t.Description) {
			return
		}
		subject := strings.TrimSpace(t.Title)
		if subject == "" {
			subject = taskRef(t, n)
		}
		t.Description = fmt.Sprintf("Implement %s as part of %s.", subject, phaseName(p))
		fixed = append(fixed, taskRef(t, n))
	})
	return "generated descriptions for " + strings.Join(fixed, ", ")
}

func fixEmptyPhases(doc *prd.Document) string {
	pattern := doc.EffectiveIDPattern()
	var added []string
	for i := range doc.Phases {
		p := &doc.Phases[i]
		if len(p.Tasks) > 0 {
			continue
		}
		id := prd.NextTaskID(pattern, doc.TaskIDs())
		name := phaseName(p)
		p.Tasks = append(p.Tasks, prd.Task{
			ID:          id,
			Title:       "Define " + name + " tasks",
			Description: fmt.Sprintf("Placeholder: break down the work for %s into concrete tasks.", name),
		})
		added = append(added, id)
	}
	return "inserted placeholder tasks " + strings.Join(added, ", ")
}

func fixMissingTaskIDs(doc *prd.Document) string {
	pattern := doc.EffectiveIDPattern()
	var assigned []string
	eachTask(doc, func(_ *prd.Phase, t *prd.Task, _ int) {
		if !blank(t.ID) {
			return
		}
		t.ID = prd.NextTaskID(pattern, doc.TaskIDs())
		assigned = append(assigned, t.ID)
	})
	return "assigned task ids " + strings.Join(assigned, ", ")
}

func fixDuplicateTaskIDs(doc *prd.Document) string {
	pattern := doc.EffectiveIDPattern()
	var renamed []string
	for i := range doc.Phases {
		seen := make(map[string]bool)
		for j := range doc.Phases[i].Tasks {
			t := &doc.Phases[i].Tasks[j]
			if blank(t.ID) {
				continue
			}
			if seen[t.ID] {
				old := t.ID
				t.ID = prd.NextTaskID(pattern, doc.TaskIDs())
				renamed = append(renamed, old+" -> "+t.ID)
			}
			seen[t.ID] = true
		}
	}
	return "renamed duplicate task ids " + strings.Join(renamed, ", ")
}

// eachTask visits every task with its 1-based position in the document.
func eachTask(doc *prd.Document, fn func(p *prd.Phase, t *prd.Task, n int)) {
	n := 0
	for i := range doc.Phases {
		for j := range doc.Phases[i].Tasks {
			n++
			fn(&doc.Phases[i], &doc.Phases[i].Tasks[j], n)
		}
	}
}

func taskRef(t *prd.Task, n int) string {
	if !blank(t.ID) {
		return t.ID
	}
	return fmt.Sprintf("task #%d", n)
}

func phaseName(p *prd.Phase) string {
	if blank(p.Name) {
		return "this phase"
	}
	return p.Name
}
