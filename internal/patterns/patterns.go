// Package patterns remembers answers across sessions in a markdown table so
// recurring questions arrive with an inferred answer. Callers own the
// Load → Record → Save cycle.
package patterns

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/qa"
	"github.com/jywlabs/prdforge/internal/template"
)

// InferenceSource marks questions whose inferred answer came from the cache.
const InferenceSource = "pattern"

const (
	baseConfidence = 0.5
	confidenceStep = 0.15
	maxConfidence  = 0.95
)

// Pattern is one remembered answer.
type Pattern struct {
	Category string
	Question string
	Answer   qa.Value
	Seen     int
}

// Confidence grows with repetition: 0.65 after one sighting, 0.8 after two,
// capped at 0.95.
func (p Pattern) Confidence() float64 {
	c := baseConfidence + confidenceStep*float64(p.Seen)
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}

// Cache is the in-memory table.
type Cache struct {
	path     string
	patterns []Pattern
	dirty    bool
}

// Load reads the table at path. A missing file yields an empty cache.
func Load(path string) (*Cache, error) {
	c := &Cache{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read patterns: %w", err)
	}
	patterns, err := parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	c.patterns = patterns
	return c, nil
}

// Patterns returns a copy of the entries.
func (c *Cache) Patterns() []Pattern {
	return append([]Pattern(nil), c.patterns...)
}

// Dirty reports whether Record changed the cache since Load.
func (c *Cache) Dirty() bool { return c.dirty }

// Lookup finds the pattern for a question.
func (c *Cache) Lookup(q qa.Question) (Pattern, bool) {
	if i := c.index(q); i >= 0 {
		return c.patterns[i], true
	}
	return Pattern{}, false
}

// Infer returns q with the remembered answer filled in. Questions that
// already carry an inferred answer are returned unchanged.
func (c *Cache) Infer(q qa.Question) (qa.Question, bool) {
	if q.InferredAnswer != nil && !q.InferredAnswer.IsZero() {
		return q, false
	}
	p, ok := c.Lookup(q)
	if !ok {
		return q, false
	}
	q.InferredAnswer = p.Answer.Ptr()
	q.InferenceSource = InferenceSource
	q.Confidence = p.Confidence()
	return q, true
}

// Record remembers an answer. Repeating the same answer raises its count;
// a different answer replaces it and restarts the count. Skipped answers
// are ignored.
func (c *Cache) Record(q qa.Question, a qa.Answer) {
	if a.Skipped || a.Value.IsZero() || normalize(q.Text) == "" {
		return
	}
	c.dirty = true
	if i := c.index(q); i >= 0 {
		p := &c.patterns[i]
		if p.Answer.Equal(a.Value) {
			p.Seen++
		} else {
			p.Answer = a.Value
			p.Seen = 1
		}
		return
	}
	c.patterns = append(c.patterns, Pattern{
		Category: q.Category,
		Question: strings.TrimSpace(q.Text),
		Answer:   a.Value,
		Seen:     1,
	})
}

// Save writes the table atomically.
func (c *Cache) Save() error {
	if err := prd.WriteFileAtomic(c.path, []byte(render(c.patterns))); err != nil {
		return fmt.Errorf("failed to write patterns: %w", err)
	}
	c.dirty = false
	return nil
}

func (c *Cache) index(q qa.Question) int {
	key := normalize(q.Text)
	for i, p := range c.patterns {
		if p.Category == q.Category && normalize(p.Question) == key {
			return i
		}
	}
	return -1
}

var spaces = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, "?.! ")
	return spaces.ReplaceAllString(s, " ")
}

const tableHeader = "| Category | Question | Answer | Seen |"

func render(patterns []Pattern) string {
	var b strings.Builder
	b.WriteString(template.DefaultPatterns)
	for _, p := range patterns {
		answer, _ := json.Marshal(p.Answer)
		fmt.Fprintf(&b, "| %s | %s | %s | %d |\n", escape(p.Category), escape(p.Question), escape(string(answer)), p.Seen)
	}
	return b.String()
}

func parse(content string) ([]Pattern, error) {
	var out []Pattern
	inTable := false
	for n, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == tableHeader {
			inTable = true
			continue
		}
		if !inTable || !strings.HasPrefix(line, "|") {
			continue
		}
		cells := splitRow(line)
		if len(cells) != 4 || strings.HasPrefix(cells[0], "---") {
			continue
		}
		var v qa.Value
		if err := json.Unmarshal([]byte(cells[2]), &v); err != nil {
			return nil, fmt.Errorf("line %d: answer: %w", n+1, err)
		}
		seen, err := strconv.Atoi(cells[3])
		if err != nil || seen < 1 {
			return nil, fmt.Errorf("line %d: invalid seen count %q", n+1, cells[3])
		}
		out = append(out, Pattern{Category: cells[0], Question: cells[1], Answer: v, Seen: seen})
	}
	return out, nil
}

// splitRow splits a table row on unescaped pipes.
func splitRow(line string) []string {
	line = strings.TrimPrefix(strings.TrimSuffix(line, "|"), "|")
	var cells []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cur.WriteByte('|')
			i++
		case line[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// Path returns the cache location for a project directory.
func Path(dir string) string {
	return filepath.Join(dir, template.ProjectDir, template.PatternsFile)
}
