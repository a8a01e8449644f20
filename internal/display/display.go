// Package display renders refinement progress, scores and summaries to the
// terminal.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/score"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const (
	barFilled = "█"
	barEmpty  = "░"
	barWidth  = 20
)

// Flusher is an optional interface for writers that support flushing.
type Flusher interface {
	Sync() error
}

// Display writes progress for a refinement run.
type Display struct {
	out      io.Writer
	mu       sync.Mutex
	spinMu   sync.Mutex
	spinning bool
	spinStop chan struct{}
	spinDone chan struct{}
	spinMsg  string
	start    time.Time
	phaseAt  time.Time
	animate  bool
}

// New creates a display writing to out. Spinners animate only when animate
// is true, so piped output stays free of control sequences.
func New(out io.Writer, animate bool) *Display {
	now := time.Now()
	return &Display{out: out, start: now, phaseAt: now, animate: animate}
}

func (d *Display) flush() {
	if f, ok := d.out.(Flusher); ok {
		f.Sync()
	}
}

// StartSpinner begins the loading spinner, or updates its message when one
// is already running.
func (d *Display) StartSpinner(msg string) {
	d.spinMu.Lock()
	if d.spinning {
		d.spinMsg = msg
		d.spinMu.Unlock()
		return
	}
	d.spinMsg = msg
	if !d.animate {
		d.spinMu.Unlock()
		fmt.Fprintf(d.out, "   %s\n", msg)
		return
	}
	d.spinning = true
	d.spinStop = make(chan struct{})
	d.spinDone = make(chan struct{})
	started := time.Now()
	d.spinMu.Unlock()

	go func() {
		defer close(d.spinDone)
		frame := 0
		first := true
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-d.spinStop:
				if !first {
					fmt.Fprintf(d.out, "\033[1A\r\033[K")
				}
				d.flush()
				return
			case <-ticker.C:
				d.spinMu.Lock()
				msg := d.spinMsg
				d.spinMu.Unlock()
				line := fmt.Sprintf("   %s %s (%s)\n", StyleAccent.Render(spinnerFrames[frame]), msg, formatElapsed(time.Since(started)))
				if first {
					fmt.Fprint(d.out, line)
					first = false
				} else {
					fmt.Fprint(d.out, "\033[1A\r\033[K"+line)
				}
				d.flush()
				frame = (frame + 1) % len(spinnerFrames)
			}
		}
	}()
}

// StopSpinner stops the loading spinner.
func (d *Display) StopSpinner() {
	d.spinMu.Lock()
	if !d.spinning {
		d.spinMu.Unlock()
		return
	}
	d.spinning = false
	close(d.spinStop)
	d.spinMu.Unlock()
	<-d.spinDone
}

// ShowCommandHeader prints a one-line command banner.
func (d *Display) ShowCommandHeader(title, context string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	line := fmt.Sprintf("%s %s", StyleCommandIcon.String(), StyleTitle.Render(title))
	if context != "" {
		line += StyleMuted.Render("  " + context)
	}
	fmt.Fprintln(d.out, line)
	fmt.Fprintln(d.out)
}

// ShowRunHeader displays the refinement parameters.
func (d *Display) ShowRunHeader(docID, engineName string, phases []enhance.Kind, maxIterations int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.start = time.Now()

	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}
	body := strings.Join([]string{
		StyleTitle.Render("Refining " + docID),
		fmt.Sprintf("Engine: %s", engineName),
		fmt.Sprintf("Phases: %s", strings.Join(names, " → ")),
		fmt.Sprintf("Max iterations: %d", maxIterations),
	}, "\n")
	fmt.Fprintln(d.out, HeaderBox().Render(body))
	fmt.Fprintln(d.out)
}

// PhaseStarted prints the phase banner with a progress bar.
func (d *Display) PhaseStarted(kind enhance.Kind, index, total int) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.phaseAt = time.Now()

	fmt.Fprintf(d.out, "  %s %s  %s\n",
		StyleBold.Render(fmt.Sprintf("Phase %d/%d", index, total)),
		progressBar(index-1, total),
		StyleInfo.Render(string(kind)))
}

// Generating shows the spinner while content for a phase is generated.
func (d *Display) Generating(kind enhance.Kind) {
	d.StartSpinner(fmt.Sprintf("generating %s...", kind))
}

// Insights lists what is known about the codebase before a phase runs.
func (d *Display) Insights(lines []string) {
	if len(lines) == 0 {
		return
	}
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range lines {
		fmt.Fprintf(d.out, "   %s %s\n", StyleInfo.Render("·"), StyleMuted.Render(l))
	}
}

// PhaseFinished reports the outcome of a phase. res is nil when the phase
// was not validated on its own.
func (d *Display) PhaseFinished(kind enhance.Kind, ok bool, note string, res *score.Result) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()

	status := StyleSuccess.Render("[ok]")
	if !ok {
		status = StyleError.Render("[!!]")
	} else if res != nil && !res.Executable {
		status = StyleWarning.Render("[--]")
	}
	elapsed := time.Since(d.phaseAt).Round(100 * time.Millisecond)
	if res != nil {
		fmt.Fprintf(d.out, "   %s %s score %d/100 quality %d/100 (%s)\n", status, kind, res.Score, res.Quality, elapsed)
	} else {
		fmt.Fprintf(d.out, "   %s %s (%s)\n", status, kind, elapsed)
	}
	if note != "" {
		fmt.Fprintf(d.out, "   %s\n", StyleMuted.Render(note))
	}
	fmt.Fprintln(d.out)
}

// FixApplied reports a single auto-fix.
func (d *Display) FixApplied(desc string) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "   %s %s\n", StyleAccent.Render("fix"), desc)
}

// ShowRetry displays retry information.
func (d *Display) ShowRetry(attempt, max int, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "   %s\n", StyleMuted.Render(fmt.Sprintf("... retrying in %s (attempt %d/%d)", delay, attempt, max)))
}

// ShowScore renders a validation result with its issues.
func (d *Display) ShowScore(title string, res score.Result) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()

	var b strings.Builder
	head := StyleSuccess.Render("[ok] executable")
	box := SuccessBox()
	if !res.Executable {
		head = StyleError.Render("[!!] not executable")
		box = ErrorBox()
	}
	fmt.Fprintf(&b, "%s  %s\n", StyleBold.Render(title), head)
	fmt.Fprintf(&b, "Score: %d/100  Quality: %d/100", res.Score, res.Quality)
	for _, is := range res.Errors {
		fmt.Fprintf(&b, "\n%s %s", StyleError.Render("error"), is.Message)
	}
	for _, is := range res.Warnings {
		fmt.Fprintf(&b, "\n%s %s", StyleWarning.Render("warn "), is.Message)
	}
	fmt.Fprintln(d.out, box.Render(b.String()))
}

// ShowGaps lists gap records below a score.
func (d *Display) ShowGaps(gaps []score.Gap) {
	if len(gaps) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, StyleTitle.Render("Gaps"))
	for _, g := range gaps {
		style := StyleMuted
		switch g.Severity {
		case score.GapHigh:
			style = StyleError
		case score.GapMedium:
			style = StyleWarning
		}
		fmt.Fprintf(d.out, "  %s %s\n", style.Render(fmt.Sprintf("%-6s", g.Severity)), g.Description)
		if g.Recommendation != "" {
			fmt.Fprintf(d.out, "         %s\n", StyleMuted.Render(g.Recommendation))
		}
	}
}

// ShowSummary renders the final summary in a success or warning box.
func (d *Display) ShowSummary(summary string, ok bool) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()

	box := SuccessBox()
	if !ok {
		box = WarningBox()
	}
	elapsed := time.Since(d.start).Round(time.Second)
	body := strings.TrimRight(summary, "\n") + "\n" + StyleMuted.Render(fmt.Sprintf("Total time: %s", elapsed))
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, box.Render(body))
}

// ShowError displays an error message.
func (d *Display) ShowError(msg string) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, ErrorBox().Render(StyleError.Render("[!!] Error")+"\n"+msg))
}

// ShowInfo displays an info message.
func (d *Display) ShowInfo(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, format, args...)
}

func progressBar(done, total int) string {
	if total <= 0 {
		total = 1
	}
	filled := done * barWidth / total
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return StyleProgressFilled.Render(strings.Repeat(barFilled, filled)) +
		StyleProgressEmpty.Render(strings.Repeat(barEmpty, barWidth-filled))
}

// formatElapsed formats duration with fixed width.
func formatElapsed(d time.Duration) string {
	secs := d.Seconds()
	if secs < 10 {
		return fmt.Sprintf("%5.2fs", secs)
	} else if secs < 100 {
		return fmt.Sprintf("%5.1fs", secs)
	}
	return fmt.Sprintf("%5.0fs", secs)
}
