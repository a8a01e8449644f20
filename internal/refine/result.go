package refine

import (
	"fmt"
	"strings"

	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/score"
)

// PhaseStatus is the outcome of a phase.
type PhaseStatus string

const (
	PhaseApplied  PhaseStatus = "applied"
	PhaseRejected PhaseStatus = "rejected"
	PhaseFailed   PhaseStatus = "failed"
)

// PhaseResult describes one phase.
type PhaseResult struct {
	Kind        enhance.Kind
	Status      PhaseStatus
	Enhancement enhance.Enhancement
	// Question accounting.
	Questions   int
	AutoApplied int
	Prompted    int
	Reused      int
	// Refinements counts targeted regenerations and edits.
	Refinements int
	// Score is the validation of the phase output; zero on the streamlined path.
	Score score.Result
	Error string
}

// Result is the outcome of Refine.
type Result struct {
	Document       *prd.Document
	Score          score.Result
	Executable     bool
	Phases         []PhaseResult
	FixesApplied   []string
	Gaps           []score.Gap
	Iterations     int
	Validations    int
	Exhausted      bool
	Stalled        bool
	Cancelled      bool
	Resumed        bool
	ConversationID string
	// Notes are non-fatal problems met along the way.
	Notes []string

	fixExhausted bool
}

func (r *Result) failedPhases() int {
	n := 0
	for _, p := range r.Phases {
		if p.Status == PhaseFailed {
			n++
		}
	}
	return n
}

// Summary renders the result for humans: score, phases, fixes applied and
// the remaining errors and warnings.
func (r *Result) Summary() string {
	var b strings.Builder

	id := ""
	if r.Document != nil {
		id = r.Document.ID
	}
	status := "executable"
	switch {
	case r.Cancelled:
		status = "cancelled"
	case !r.Executable:
		status = "not executable"
	}
	fmt.Fprintf(&b, "Refinement of %s: %s\n", orNone(id), status)
	fmt.Fprintf(&b, "Score: %d/100  Quality: %d/100\n", r.Score.Score, r.Score.Quality)
	fmt.Fprintf(&b, "Iterations: %d  Validations: %d\n", r.Iterations, r.Validations)
	if r.Exhausted {
		b.WriteString("Iteration budget exhausted\n")
	}
	if r.Stalled {
		b.WriteString("Auto-fix stalled\n")
	}

	if len(r.Phases) > 0 {
		b.WriteString("\nPhases:\n")
		for _, p := range r.Phases {
			line := fmt.Sprintf("  %-8s %s", p.Kind, p.Status)
			switch p.Status {
			case PhaseApplied:
				line += " (" + describe(p.Enhancement) + ")"
			case PhaseFailed:
				line += ": " + p.Error
			}
			b.WriteString(line + "\n")
		}
	}

	fmt.Fprintf(&b, "\nFixes applied (%d):\n", len(r.FixesApplied))
	for _, f := range r.FixesApplied {
		fmt.Fprintf(&b, "  - %s\n", f)
	}

	fmt.Fprintf(&b, "\nErrors (%d):\n", len(r.Score.Errors))
	for _, is := range r.Score.Errors {
		fmt.Fprintf(&b, "  - %s\n", is.Message)
	}
	fmt.Fprintf(&b, "Warnings (%d):\n", len(r.Score.Warnings))
	for _, is := range r.Score.Warnings {
		fmt.Fprintf(&b, "  - %s\n", is.Message)
	}

	if len(r.Notes) > 0 {
		b.WriteString("\nNotes:\n")
		for _, n := range r.Notes {
			fmt.Fprintf(&b, "  - %s\n", n)
		}
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "(untitled)"
	}
	return s
}
