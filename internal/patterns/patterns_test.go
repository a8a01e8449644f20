package patterns

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jywlabs/prdforge/internal/qa"
	"github.com/jywlabs/prdforge/internal/template"
)

func question(text string) qa.Question {
	return qa.Question{ID: "q", Text: text, Category: "schema", Type: qa.TypeOpen}
}

func TestLoad_MissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "patterns.md"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(c.Patterns()) != 0 {
		t.Errorf("Patterns() = %v, want empty", c.Patterns())
	}
}

func TestLoad_DefaultTemplateIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.md")
	if err := os.WriteFile(path, []byte(template.DefaultPatterns), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(c.Patterns()) != 0 {
		t.Errorf("Patterns() = %v", c.Patterns())
	}
}

func TestRecordSaveLoad(t *testing.T) {
	path := Path(t.TempDir())
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	c.Record(question("Which database?"), qa.Answer{Value: qa.Text("postgres | primary")})
	c.Record(question("which  database"), qa.Answer{Value: qa.Text("postgres | primary")})
	c.Record(question("Which entities?"), qa.Answer{Value: qa.List("User", "Session")})
	c.Record(question("Soft delete?"), qa.Answer{Value: qa.Bool(true)})
	c.Record(question("Ignored?"), qa.Answer{Skipped: true})
	if !c.Dirty() {
		t.Fatal("Dirty() = false after Record")
	}
	if err := c.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "# Learned Patterns") {
		t.Errorf("saved file lost header:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	got := loaded.Patterns()
	if len(got) != 3 {
		t.Fatalf("got %d patterns, want 3: %+v", len(got), got)
	}
	if got[0].Seen != 2 || !got[0].Answer.Equal(qa.Text("postgres | primary")) {
		t.Errorf("pattern[0] = %+v", got[0])
	}
	if !got[1].Answer.Equal(qa.List("User", "Session")) {
		t.Errorf("pattern[1] = %+v", got[1])
	}
	if !got[2].Answer.Equal(qa.Bool(true)) {
		t.Errorf("pattern[2] = %+v", got[2])
	}
}

func TestRecord_DifferentAnswerRestartsCount(t *testing.T) {
	c := &Cache{}
	q := question("Which database?")
	c.Record(q, qa.Answer{Value: qa.Text("postgres")})
	c.Record(q, qa.Answer{Value: qa.Text("postgres")})
	c.Record(q, qa.Answer{Value: qa.Text("sqlite")})

	p, ok := c.Lookup(q)
	if !ok || p.Seen != 1 || p.Answer.Text != "sqlite" {
		t.Errorf("Lookup() = %+v, %v", p, ok)
	}
}

func TestRecord_CategoryScopesQuestion(t *testing.T) {
	c := &Cache{}
	c.Record(question("Which framework?"), qa.Answer{Value: qa.Text("x")})
	other := question("Which framework?")
	other.Category = "test"
	if _, ok := c.Lookup(other); ok {
		t.Error("Lookup() matched a different category")
	}
}

func TestInfer(t *testing.T) {
	c := &Cache{}
	q := question("Which database?")
	if _, ok := c.Infer(q); ok {
		t.Fatal("Infer() on empty cache returned ok")
	}

	for i := 0; i < 3; i++ {
		c.Record(q, qa.Answer{Value: qa.Text("postgres")})
	}
	got, ok := c.Infer(q)
	if !ok {
		t.Fatal("Infer() ok = false")
	}
	if got.InferredAnswer.Text != "postgres" || got.InferenceSource != InferenceSource {
		t.Errorf("Infer() = %+v", got)
	}
	if got.Confidence != maxConfidence {
		t.Errorf("Confidence = %v, want %v", got.Confidence, maxConfidence)
	}
	if q.InferredAnswer != nil {
		t.Error("Infer() mutated its argument")
	}

	pre := q
	pre.InferredAnswer = qa.Text("mysql").Ptr()
	if out, ok := c.Infer(pre); ok || out.InferredAnswer.Text != "mysql" {
		t.Errorf("Infer() overrode an existing inferred answer: %+v", out)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		seen int
		want float64
	}{
		{1, 0.65},
		{2, 0.8},
		{3, 0.95},
		{10, 0.95},
	}
	for _, tt := range tests {
		got := Pattern{Seen: tt.seen}.Confidence()
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Confidence(seen=%d) = %v, want %v", tt.seen, got, tt.want)
		}
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{name: "bad answer", row: "| schema | q | not-json | 1 |"},
		{name: "bad count", row: `| schema | q | "a" | zero |`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "patterns.md")
			os.WriteFile(path, []byte(template.DefaultPatterns+tt.row+"\n"), 0644)
			if _, err := Load(path); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestSplitRow(t *testing.T) {
	got := splitRow(`| a | b \| c | "d" | 2 |`)
	want := []string{"a", "b | c", `"d"`, "2"}
	if len(got) != len(want) {
		t.Fatalf("splitRow() = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cell %d = %q, want %q", i, got[i], want[i])
		}
	}
}
