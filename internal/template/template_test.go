package template

import (
	"strings"
	"testing"
)

func TestDefaultFiles(t *testing.T) {
	files := DefaultFiles()

	for _, name := range []string{ConfigFile, PatternsFile} {
		content, ok := files[name]
		if !ok {
			t.Errorf("DefaultFiles() missing %s", name)
			continue
		}
		if strings.TrimSpace(content) == "" {
			t.Errorf("%s is empty", name)
		}
	}
	if !strings.Contains(DefaultConfig, "autoAnswerThreshold: 0.85") {
		t.Error("default config should set the gate threshold")
	}
	if !strings.Contains(DefaultPatterns, "| Category | Question | Answer | Seen |") {
		t.Error("default patterns file should contain the table header")
	}
}
