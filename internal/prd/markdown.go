package prd

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontMatter is the YAML header of a markdown PRD.
type frontMatter struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	IDPattern   string   `yaml:"idPattern"`
	DependsOn   []string `yaml:"dependsOn"`
	Testing     *Testing `yaml:"testing"`
}

var taskLine = regexp.MustCompile(`^- \[( |x|X)\] (.*)$`)

// maxMarkdownLine bounds a single line of a markdown PRD (10MB).
const maxMarkdownLine = 10 * 1024 * 1024

// ParseMarkdown reads a markdown PRD with optional YAML front matter.
//
//	---
//	id: auth
//	version: 1.0.0
//	---
//	# Authentication
//	## Phase: Backend
//	- [ ] REQ-001: Add login endpoint
//	  Accepts email and password.
//
// "## " headings start phases (a leading "Phase:" is stripped). Checkbox
// lines are tasks; "[x]" marks a task as passing. Indented lines following
// a task are appended to its description.
func ParseMarkdown(r io.Reader) (*Document, error) {
	doc := &Document{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxMarkdownLine)
	lineNum := 0

	var (
		inFront    bool
		frontLines []string
		phase      *Phase
		task       *Task
		descLines  []string
	)

	flushTask := func() {
		if task == nil {
			return
		}
		if len(descLines) > 0 {
			task.Description = strings.Join(descLines, "\n")
		}
		phase.Tasks = append(phase.Tasks, *task)
		task = nil
		descLines = nil
	}
	flushPhase := func() {
		flushTask()
		if phase != nil {
			doc.Phases = append(doc.Phases, *phase)
			phase = nil
		}
	}

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// Front matter must open on the first line
		if lineNum == 1 && strings.TrimSpace(line) == "---" {
			inFront = true
			continue
		}
		if inFront {
			if strings.TrimSpace(line) == "---" {
				inFront = false
				if err := applyFrontMatter(doc, frontLines); err != nil {
					return nil, fmt.Errorf("front matter: %w", err)
				}
				continue
			}
			frontLines = append(frontLines, line)
			continue
		}

		// Continuation line (indented) belongs to the current task
		if task != nil && len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			descLines = append(descLines, strings.TrimLeft(line, " \t"))
			continue
		}

		switch {
		case strings.HasPrefix(line, "## "):
			flushPhase()
			name := strings.TrimSpace(strings.TrimPrefix(line, "## "))
			name = strings.TrimSpace(strings.TrimPrefix(name, "Phase:"))
			phase = &Phase{Name: name}

		case strings.HasPrefix(line, "# "):
			flushTask()
			if doc.Title == "" {
				doc.Title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			}

		case taskLine.MatchString(line):
			flushTask()
			if phase == nil {
				return nil, fmt.Errorf("line %d: task outside of a phase", lineNum)
			}
			m := taskLine.FindStringSubmatch(line)
			task = parseTask(m[2])
			task.Passes = m[1] != " "

		default:
			flushTask()
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if phase != nil {
				phase.Description = joinLine(phase.Description, text)
			} else {
				doc.Description = joinLine(doc.Description, text)
			}
		}
	}

	if inFront {
		return nil, fmt.Errorf("unterminated front matter")
	}
	flushPhase()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return doc, nil
}

// parseTask splits "REQ-001: Title" into id and title. Text without an id
// prefix becomes the title.
func parseTask(text string) *Task {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, ":"); idx > 0 {
		id := strings.TrimSpace(text[:idx])
		if !strings.ContainsAny(id, " \t") {
			return &Task{ID: id, Title: strings.TrimSpace(text[idx+1:])}
		}
	}
	return &Task{Title: text}
}

func applyFrontMatter(doc *Document, lines []string) error {
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &fm); err != nil {
		return err
	}
	doc.ID = fm.ID
	doc.Title = fm.Title
	doc.Version = fm.Version
	doc.Description = fm.Description
	doc.IDPattern = fm.IDPattern
	doc.Testing = fm.Testing
	if len(fm.DependsOn) > 0 {
		doc.Dependencies = &Dependencies{DependsOn: fm.DependsOn}
	}
	return nil
}

func joinLine(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
