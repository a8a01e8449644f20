package display

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/score"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

func plain(s string) string { return ansiRegex.ReplaceAllString(s, "") }

func TestStartSpinner_StaticWhenNotAnimated(t *testing.T) {
	var out bytes.Buffer
	d := New(&out, false)

	d.StartSpinner("generating schema...")
	d.StopSpinner()

	if d.spinning {
		t.Fatal("static display should never mark spinner active")
	}
	if got := plain(out.String()); got != "   generating schema...\n" {
		t.Errorf("output = %q", got)
	}
}

func TestStartSpinner_UpdatesMessageWhenAlreadySpinning(t *testing.T) {
	var out bytes.Buffer
	d := New(&out, true)

	d.StartSpinner("generating schema...")
	d.StartSpinner("generating test...")
	if !d.spinning {
		t.Fatal("expected spinner to remain active")
	}
	if d.spinMsg != "generating test..." {
		t.Fatalf("spinMsg = %q", d.spinMsg)
	}
	d.StopSpinner()
	d.StopSpinner()
}

func TestPhaseLifecycle(t *testing.T) {
	var out bytes.Buffer
	d := New(&out, false)

	d.PhaseStarted(enhance.KindSchema, 1, 3)
	d.Generating(enhance.KindSchema)
	d.FixApplied("missing-title: set title")
	d.PhaseFinished(enhance.KindSchema, true, "", &score.Result{Score: 80, Quality: 76})
	d.Insights([]string{"branch main"})
	d.PhaseFinished(enhance.KindTest, false, "test: generation failed", nil)

	got := plain(out.String())
	for _, want := range []string{"Phase 1/3", "schema", "generating schema...", "fix missing-title: set title", "[--] schema score 80/100 quality 76/100", "branch main", "[!!] test (", "test: generation failed"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestShowScore(t *testing.T) {
	var out bytes.Buffer
	d := New(&out, false)

	d.ShowScore("auth", score.Result{
		Score:    80,
		Quality:  78,
		Errors:   []score.Issue{{Message: "PRD has no phases"}},
		Warnings: []score.Issue{{Message: "task T-1 has no acceptance criteria"}},
	})

	got := plain(out.String())
	for _, want := range []string{"not executable", "Score: 80/100", "PRD has no phases", "no acceptance criteria"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestShowGaps(t *testing.T) {
	var out bytes.Buffer
	d := New(&out, false)

	d.ShowGaps(nil)
	if out.Len() != 0 {
		t.Fatalf("ShowGaps(nil) wrote %q", out.String())
	}

	d.ShowGaps([]score.Gap{{Severity: score.GapHigh, Description: "no test cases", Recommendation: "run the test phase"}})
	got := plain(out.String())
	if !strings.Contains(got, "high") || !strings.Contains(got, "run the test phase") {
		t.Errorf("output = %q", got)
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		done, total int
		filled      int
	}{
		{0, 3, 0},
		{3, 3, barWidth},
		{1, 2, barWidth / 2},
		{5, 0, barWidth},
	}
	for _, tt := range tests {
		got := plain(progressBar(tt.done, tt.total))
		if n := strings.Count(got, barFilled); n != tt.filled {
			t.Errorf("progressBar(%d, %d) filled = %d, want %d", tt.done, tt.total, n, tt.filled)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1040 * time.Millisecond, " 1.04s"},
		{10 * time.Second, " 10.0s"},
		{100 * time.Second, "  100s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
