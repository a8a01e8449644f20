// Package prdtest provides document fixtures and generators for tests.
package prdtest

import (
	"fmt"

	"pgregory.net/rapid"

	"github.com/jywlabs/prdforge/internal/prd"
)

// Executable returns a document that passes every rubric check.
func Executable() *prd.Document {
	return &prd.Document{
		ID:        "auth",
		Title:     "Authentication",
		Version:   "1.0.0",
		IDPattern: "AUTH-{id}",
		Phases: []prd.Phase{
			{
				Name: "Backend",
				Tasks: []prd.Task{
					{ID: "AUTH-001", Title: "User table", Description: "Create the users table", AcceptanceCriteria: []string{"Migration runs"}},
					{ID: "AUTH-002", Title: "Login endpoint", Description: "POST /login issues a session", AcceptanceCriteria: []string{"Returns 200"}},
				},
			},
		},
		Testing:      &prd.Testing{Framework: "go", Command: "go test ./..."},
		Dependencies: &prd.Dependencies{},
	}
}

var (
	prefixes = []string{"REQ-", "TASK-", "T_", "US.", ""}
	words    = []string{"", "", "login", "Create users", "Wire API", "  "}
)

// Document generates documents that break any subset of the rubric.
func Document() *rapid.Generator[*prd.Document] {
	return rapid.Custom(func(t *rapid.T) *prd.Document {
		doc := &prd.Document{
			ID:        rapid.SampledFrom([]string{"", "doc-a", "doc-b"}).Draw(t, "id"),
			Title:     rapid.SampledFrom([]string{"", "Doc"}).Draw(t, "title"),
			Version:   rapid.SampledFrom([]string{"", "1.0"}).Draw(t, "version"),
			IDPattern: rapid.SampledFrom([]string{"", "REQ-{id}", "TASK-{id}", "{id}", "bogus"}).Draw(t, "idPattern"),
		}

		switch rapid.IntRange(0, 2).Draw(t, "testing") {
		case 1:
			doc.Testing = &prd.Testing{Framework: "go", Command: "go test ./..."}
		case 2:
			doc.Testing = &prd.Testing{Framework: rapid.SampledFrom([]string{"", "jest"}).Draw(t, "framework")}
		}

		phases := rapid.IntRange(0, 3).Draw(t, "phases")
		for i := 0; i < phases; i++ {
			p := prd.Phase{Name: rapid.SampledFrom([]string{"", fmt.Sprintf("Phase %d", i+1)}).Draw(t, "phaseName")}
			tasks := rapid.IntRange(0, 4).Draw(t, "tasks")
			for j := 0; j < tasks; j++ {
				prefix := rapid.SampledFrom(prefixes).Draw(t, "prefix")
				id := ""
				if prefix != "" {
					id = fmt.Sprintf("%s%03d", prefix, rapid.IntRange(1, 3).Draw(t, "n"))
				}
				p.Tasks = append(p.Tasks, prd.Task{
					ID:          id,
					Title:       rapid.SampledFrom(words).Draw(t, "taskTitle"),
					Description: rapid.SampledFrom(words).Draw(t, "taskDescription"),
				})
			}
			doc.Phases = append(doc.Phases, p)
		}
		return doc
	})
}
